package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sbinet/npyio/npz"
)

// ErrMissingArray indicates an archive without a required array.
var ErrMissingArray = errors.New("archive: missing array")

// npySuffix is the member suffix numpy.savez gives every array.
const npySuffix = ".npy"

// archiveEntry is one named array of a compressed .npz archive.
type archiveEntry struct {
	name  string
	value any
}

// writeArchive writes entries to a compressed .npz archive, replacing any
// existing file. Members are named "<name>.npy" like numpy writes them.
func writeArchive(path string, entries []archiveEntry) (err error) {
	w, err := npz.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	for _, e := range entries {
		member := e.name
		if !strings.HasSuffix(member, npySuffix) {
			member += npySuffix
		}
		if err := w.Write(member, e.value); err != nil {
			return fmt.Errorf("failed to write %s to %s: %w", e.name, path, err)
		}
	}
	return nil
}

// memberName returns the archive member holding the named array, which is
// "<name>.npy" for numpy archives and the bare name for some other writers.
func memberName(r *npz.Reader, name string) (string, bool) {
	keys := r.Keys()
	for _, member := range []string{name + npySuffix, name} {
		if slices.Contains(keys, member) {
			return member, true
		}
	}
	return "", false
}

// readArray decodes the named array of the archive at path into ptr.
func readArray(r *npz.Reader, path, name string, ptr any) error {
	member, ok := memberName(r, name)
	if !ok {
		return fmt.Errorf("%w: %s has no %q", ErrMissingArray, path, name)
	}
	if err := r.Read(member, ptr); err != nil {
		return fmt.Errorf("failed to read %s from %s: %w", name, path, err)
	}
	return nil
}
