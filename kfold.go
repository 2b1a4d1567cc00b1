package main

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sbinet/npyio/npz"
)

// ErrInvalidFolds indicates a fold count or fold file that cannot describe a
// split of the dataset.
var ErrInvalidFolds = errors.New("kfold: invalid folds")

// Keys of the split archive.
const (
	keyIndices   = "indices"    // int64, every fold concatenated in fold order
	keyFoldSizes = "fold_sizes" // int64, one length per fold
)

// KFold partitions the indices 0..n-1 into k held-out sets.
//
// The indices are shuffled once and cut into consecutive folds; the first
// n%k folds get one extra element, so fold sizes differ by at most one.
// Each held-out set is then shuffled again on its own.
func KFold(n, k int, rng *rand.Rand) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", ErrInvalidFolds, k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: cannot make %d folds from %d samples", ErrInvalidFolds, k, n)
	}

	perm := rng.Perm(n)

	folds := make([][]int, k)
	start := 0
	for i := range folds {
		size := n / k
		if i < n%k {
			size++
		}
		fold := make([]int, size)
		copy(fold, perm[start:start+size])
		rng.Shuffle(len(fold), func(a, b int) {
			fold[a], fold[b] = fold[b], fold[a]
		})
		folds[i] = fold
		start += size
	}

	return folds, nil
}

// SaveFolds writes folds to a compressed split archive.
func SaveFolds(path string, folds [][]int) error {
	var indices, sizes []int64
	for _, fold := range folds {
		sizes = append(sizes, int64(len(fold)))
		for _, idx := range fold {
			indices = append(indices, int64(idx))
		}
	}
	return writeArchive(path, []archiveEntry{
		{keyIndices, indices},
		{keyFoldSizes, sizes},
	})
}

// LoadFolds reads a split archive. Archives without fold sizes are cut into
// numFolds equal folds.
func LoadFolds(path string, numFolds int) ([][]int, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fold indices: %w", err)
	}
	defer r.Close()

	var indices []int64
	if err := readArray(r, path, keyIndices, &indices); err != nil {
		return nil, err
	}

	var sizes []int64
	if _, ok := memberName(r, keyFoldSizes); ok {
		if err := readArray(r, path, keyFoldSizes, &sizes); err != nil {
			return nil, err
		}
	} else {
		if numFolds <= 0 || len(indices)%numFolds != 0 {
			return nil, fmt.Errorf("%w: %d indices do not split into %d equal folds", ErrInvalidFolds, len(indices), numFolds)
		}
		for range numFolds {
			sizes = append(sizes, int64(len(indices)/numFolds))
		}
	}

	if numFolds > 0 && len(sizes) != numFolds {
		return nil, fmt.Errorf("%w: %s holds %d folds, want %d", ErrInvalidFolds, path, len(sizes), numFolds)
	}

	folds := make([][]int, len(sizes))
	start := 0
	for i, size := range sizes {
		end := start + int(size)
		if size < 0 || end > len(indices) {
			return nil, fmt.Errorf("%w: fold %d overruns %d indices", ErrInvalidFolds, i, len(indices))
		}
		fold := make([]int, size)
		for j, idx := range indices[start:end] {
			fold[j] = int(idx)
		}
		folds[i] = fold
		start = end
	}
	if start != len(indices) {
		return nil, fmt.Errorf("%w: fold sizes cover %d of %d indices", ErrInvalidFolds, start, len(indices))
	}

	return folds, nil
}
