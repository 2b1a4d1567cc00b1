package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"
)

// RunPrepareCommand normalizes the labels of a raw dataset archive. It
// writes the normalized dataset for training and the statistics used to
// map predictions back to the original scale.
func RunPrepareCommand(args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	rawPath := fs.String("raw", "data/graphs_raw.npz", "Dataset archive with raw labels")
	outPath := fs.String("data", "data/graphs.npz", "Output dataset archive with normalized labels")
	normPath := fs.String("norm", "data/norm.npz", "Output normalization statistics")
	numGraphs := fs.Int("num_graphs", 492, "Number of graphs in the dataset")
	maxNodeNum := fs.Int("max_node_num", 300, "Padded node count of every graph")
	atomAttrDim := fs.Int("atom_attr_dim", 5, "Node attribute width")
	verbose := fs.Bool("v", false, "Debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ds, err := LoadGraphDataset(*rawPath, DatasetDims{
		NumGraphs:   *numGraphs,
		MaxNodeNum:  *maxNodeNum,
		AtomAttrDim: *atomAttrDim,
	})
	if err != nil {
		return err
	}

	norm, err := NormalizeLabels(ds)
	if err != nil {
		return err
	}

	if err := SaveNormStats(*normPath, norm); err != nil {
		return err
	}
	if err := SaveGraphDataset(*outPath, ds); err != nil {
		return err
	}

	logger.Info("dataset prepared",
		zap.String("dataset", *outPath),
		zap.String("norm", *normPath),
		zap.Float64("label_mean", norm.Mean),
		zap.Float64("label_std", norm.Std))
	return nil
}

// NormalizeLabels rewrites ds.Label in place to zero mean and unit
// population variance and returns the statistics used.
func NormalizeLabels(ds *GraphDataset) (NormStats, error) {
	norm, err := ComputeNormStats(ds.Label)
	if err != nil {
		return NormStats{}, err
	}
	for i, v := range ds.Label {
		ds.Label[i] = norm.Normalize(v)
	}
	return norm, nil
}
