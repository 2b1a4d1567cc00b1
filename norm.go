package main

import (
	"errors"
	"fmt"

	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateLabels indicates labels whose standard deviation is zero, so
// they cannot be normalized.
var ErrDegenerateLabels = errors.New("norm: labels have zero variance")

const keyNorm = "norm" // float64 [mean, std]

// NormStats are the label normalization statistics of a dataset.
type NormStats struct {
	Mean float64
	Std  float64
}

// ComputeNormStats returns the mean and population standard deviation of
// labels.
func ComputeNormStats(labels []float64) (NormStats, error) {
	if len(labels) == 0 {
		return NormStats{}, fmt.Errorf("%w: no labels", ErrDegenerateLabels)
	}
	mean, std := stat.PopMeanStdDev(labels, nil)
	if std == 0 {
		return NormStats{}, ErrDegenerateLabels
	}
	return NormStats{Mean: mean, Std: std}, nil
}

// Normalize maps a raw label to the training scale.
func (n NormStats) Normalize(v float64) float64 {
	return (v - n.Mean) / n.Std
}

// Denormalize maps a model output back to the label's original scale.
func (n NormStats) Denormalize(v float64) float64 {
	return v*n.Std + n.Mean
}

// DenormalizeAll returns a de-normalized copy of values.
func (n NormStats) DenormalizeAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = n.Denormalize(v)
	}
	return out
}

// LoadNormStats reads a norm archive holding [mean, std].
func LoadNormStats(path string) (NormStats, error) {
	r, err := npz.Open(path)
	if err != nil {
		return NormStats{}, fmt.Errorf("failed to open normalization stats: %w", err)
	}
	defer r.Close()

	var norm []float64
	if err := readArray(r, path, keyNorm, &norm); err != nil {
		return NormStats{}, err
	}
	if len(norm) != 2 {
		return NormStats{}, fmt.Errorf("%w: %s holds %d values, want [mean, std]", ErrShapeMismatch, path, len(norm))
	}
	return NormStats{Mean: norm[0], Std: norm[1]}, nil
}

// SaveNormStats writes a norm archive.
func SaveNormStats(path string, n NormStats) error {
	return writeArchive(path, []archiveEntry{{keyNorm, []float64{n.Mean, n.Std}}})
}
