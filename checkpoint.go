package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Checkpoints are .npz archives holding one array per named parameter, so
// they open directly with numpy.load for inspection:
//
//   config               int64 [max_node_num, atom_attr_dim, latent_dim, bits]
//   <name>               float64 values, or uint16 IEEE half words when bits=16
//   shape.<name>         int64 shape of the parameter
//
// Half precision halves the already small files at the cost of ~3 decimal
// digits per weight. Training always runs in float64; precision only
// applies on the way to disk.
//
// ===========================================================================

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio/npz"
	"github.com/x448/float16"
)

// ErrCheckpointMismatch indicates a checkpoint written for a model with
// different dimensions.
var ErrCheckpointMismatch = errors.New("checkpoint: model mismatch")

const keyConfig = "config"

// Precision selects how weights are encoded on disk.
type Precision int

const (
	FP64 Precision = 64
	FP16 Precision = 16
)

// ParsePrecision maps a flag value to a precision.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "fp64", "":
		return FP64, nil
	case "fp16":
		return FP16, nil
	default:
		return 0, fmt.Errorf("unknown checkpoint precision %q (want fp64 or fp16)", s)
	}
}

func (p Precision) String() string {
	return fmt.Sprintf("fp%d", int(p))
}

// CheckpointPath returns the file a checkpoint for epoch is written to.
func CheckpointPath(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("checkpoint_%d.npz", epoch))
}

// SaveCheckpoint writes every model parameter to path. Any precision other
// than FP16, including the zero value, is written as FP64.
func SaveCheckpoint(path string, model *GraphModel, precision Precision) error {
	if precision != FP16 {
		precision = FP64
	}
	cfg := model.Config()
	entries := []archiveEntry{{keyConfig, []int64{
		int64(cfg.MaxNodeNum), int64(cfg.AtomAttrDim), int64(cfg.LatentDim), int64(precision),
	}}}

	for _, p := range model.NamedParameters() {
		shape := make([]int64, len(p.Tensor.shape))
		for i, dim := range p.Tensor.shape {
			shape[i] = int64(dim)
		}
		entries = append(entries,
			archiveEntry{p.Name, encodeWeights(p.Tensor.data, precision)},
			archiveEntry{"shape." + p.Name, shape},
		)
	}

	return writeArchive(path, entries)
}

// LoadCheckpoint restores parameters saved by SaveCheckpoint into model.
// The model must have the dimensions the checkpoint was written with.
func LoadCheckpoint(path string, model *GraphModel) error {
	r, err := npz.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer r.Close()

	var config []int64
	if err := readArray(r, path, keyConfig, &config); err != nil {
		return err
	}
	if len(config) != 4 {
		return fmt.Errorf("%w: config has %d entries", ErrCheckpointMismatch, len(config))
	}
	cfg := model.Config()
	if int(config[0]) != cfg.MaxNodeNum || int(config[1]) != cfg.AtomAttrDim || int(config[2]) != cfg.LatentDim {
		return fmt.Errorf("%w: checkpoint dims %v, model dims [%d %d %d]",
			ErrCheckpointMismatch, config[:3], cfg.MaxNodeNum, cfg.AtomAttrDim, cfg.LatentDim)
	}
	precision := Precision(config[3])

	for _, p := range model.NamedParameters() {
		var shape []int64
		if err := readArray(r, path, "shape."+p.Name, &shape); err != nil {
			return err
		}
		if len(shape) != len(p.Tensor.shape) {
			return fmt.Errorf("%w: %s has rank %d, want %d", ErrCheckpointMismatch, p.Name, len(shape), len(p.Tensor.shape))
		}
		for i, dim := range shape {
			if int(dim) != p.Tensor.shape[i] {
				return fmt.Errorf("%w: %s has shape %v, want %v", ErrCheckpointMismatch, p.Name, shape, p.Tensor.shape)
			}
		}

		values, err := readWeights(r, path, p.Name, precision)
		if err != nil {
			return err
		}
		if len(values) != p.Tensor.Size() {
			return fmt.Errorf("%w: %s has %d values, want %d", ErrCheckpointMismatch, p.Name, len(values), p.Tensor.Size())
		}
		copy(p.Tensor.data, values)
	}

	return nil
}

func encodeWeights(data []float64, precision Precision) any {
	if precision != FP16 {
		return data
	}
	words := make([]uint16, len(data))
	for i, v := range data {
		words[i] = float16.Fromfloat32(float32(v)).Bits()
	}
	return words
}

func readWeights(r *npz.Reader, path, name string, precision Precision) ([]float64, error) {
	switch precision {
	case FP64:
		var values []float64
		if err := readArray(r, path, name, &values); err != nil {
			return nil, err
		}
		return values, nil
	case FP16:
		var words []uint16
		if err := readArray(r, path, name, &words); err != nil {
			return nil, err
		}
		values := make([]float64, len(words))
		for i, w := range words {
			values[i] = float64(float16.Frombits(w).Float32())
		}
		return values, nil
	default:
		return nil, fmt.Errorf("%w: unknown precision %d", ErrCheckpointMismatch, int(precision))
	}
}

// ensureDir creates dir and its parents if needed.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return nil
}
