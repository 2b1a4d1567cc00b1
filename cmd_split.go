package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RunSplitCommand generates shuffled k-fold indices for a dataset and writes
// them to a compressed archive for the train command.
//
// A negative seed draws one from the clock, so repeated runs produce
// different splits. The seed actually used is logged either way.
func RunSplitCommand(args []string) error {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	folds := fs.Int("folds", 10, "Number of folds")
	dataPath := fs.String("data", "data/graphs.npz", "Graph dataset archive (only its size is used)")
	outPath := fs.String("out", "indices.npz", "Output fold index archive")
	seed := fs.Int64("seed", -1, "Random seed (negative = derive from the clock)")
	verbose := fs.Bool("v", false, "Debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	n, err := ReadLabelCount(*dataPath)
	if err != nil {
		return err
	}

	if *seed < 0 {
		*seed = time.Now().UnixNano()
	}
	logger.Info("splitting dataset",
		zap.String("dataset", *dataPath),
		zap.Int("samples", n),
		zap.Int("folds", *folds),
		zap.Int64("seed", *seed))

	indices, err := KFold(n, *folds, rand.New(rand.NewSource(*seed)))
	if err != nil {
		return err
	}

	if err := SaveFolds(*outPath, indices); err != nil {
		return err
	}

	logger.Info("fold indices written", zap.String("path", *outPath))
	return nil
}
