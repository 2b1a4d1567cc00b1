package main

import (
	"flag"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

// RunEvaluateCommand restores a checkpoint and prints the same final report
// as the end of a training run.
func RunEvaluateCommand(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	rf := registerRunFlags(fs)
	checkpointFile := fs.String("checkpoint_file", "", "Checkpoint archive to evaluate (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *checkpointFile == "" {
		return fmt.Errorf("-checkpoint_file is required")
	}

	logger, err := newLogger(*rf.verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	modelCfg, err := rf.modelConfig()
	if err != nil {
		return err
	}

	compute := rf.computeConfig()
	SetGlobalComputeConfig(compute)

	rng := rand.New(rand.NewSource(*rf.seed))
	data, err := rf.load(rng, logger)
	if err != nil {
		return err
	}

	model := NewGraphModel(modelCfg, rng, logger)
	if err := LoadCheckpoint(*checkpointFile, model); err != nil {
		return err
	}
	logger.Info("checkpoint restored", zap.String("path", *checkpointFile))

	return finalReport(model, data, *rf.printPreds)
}
