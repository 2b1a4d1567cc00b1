package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the training loop for the graph model.
//
// THE TRAINING PROCESS:
//
// For every epoch:
//   1. Checkpoint if the epoch is on the cadence (every epochs/10 epochs and
//      always on the last epoch). The snapshot is taken BEFORE the epoch's
//      updates, so checkpoint_0 holds the initial weights.
//   2. One pass over the training batches, in loader order:
//        zero grads → forward → MSE against normalized labels → backward → step
//   3. A read-only pass over the test batches, reported for monitoring.
//
// The test loss is printed, never acted on: no early stopping, no model
// selection. The only state that changes is the model parameters and the
// optimizer's moment estimates, both touched only by step 2.
//
// Everything the loop needs arrives in TrainConfig. Nothing is read from
// package-level variables.
//
// ===========================================================================

import (
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"
)

// TrainConfig holds everything the training loop needs.
type TrainConfig struct {
	Epochs          int
	LearningRate    float64
	MinLearningRate float64 // floor of the cosine schedule
	Schedule        LRSchedule
	Optimizer       string // "adam" (default) or "sgd"
	WeightDecay     float64

	CheckpointDir       string
	CheckpointPrecision Precision

	// Norm de-normalizes predictions for the per-epoch test report.
	Norm NormStats

	Out    io.Writer // progress report, stdout in the CLI
	Logger *zap.Logger
}

// EpochStats records one epoch of training.
type EpochStats struct {
	Epoch        int
	TrainMSE     float64 // mean of per-batch losses, normalized scale
	TestMSE      float64 // de-normalized scale; NaN without a test set
	Checkpointed bool
	Duration     time.Duration
}

// shouldCheckpoint reports whether epoch is on the checkpoint cadence:
// every epochs/10 epochs (a real-valued period, so fewer than ten epochs
// checkpoint at every multiple of the fractional period) and the final
// epoch.
func shouldCheckpoint(epoch, epochs int) bool {
	if epoch == epochs-1 {
		return true
	}
	period := float64(epochs) / 10
	return math.Mod(float64(epoch), period) == 0
}

func optimizerName(name string) string {
	if name == "" {
		return "adam"
	}
	return name
}

// TrainStep performs a single optimization step on one batch and returns
// the loss measured before the update.
func TrainStep(model *GraphModel, batch *Batch, optimizer Optimizer, lr float64) float64 {
	params := model.Parameters()
	optimizer.ZeroGrad(params)

	pred, cache := model.ForwardWithCache(batch)
	loss := MSELoss(pred, batch.Label)

	model.Backward(MSELossBackward(pred, batch.Label), cache)
	optimizer.Step(params, lr)

	return loss
}

// Train runs cfg.Epochs epochs of cfg.Optimizer over trainData, evaluating testData
// after every epoch. testData may be nil.
func Train(model *GraphModel, trainData, testData BatchSource, cfg TrainConfig) ([]EpochStats, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}

	params := model.Parameters()
	optimizer, err := NewOptimizer(cfg.Optimizer, params, cfg.WeightDecay)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(cfg.CheckpointDir); err != nil {
		return nil, err
	}

	scheduler := NewLRScheduler(cfg.Schedule, cfg.LearningRate, cfg.MinLearningRate,
		cfg.Epochs*trainData.NumBatches())

	logger.Info("training started",
		zap.Int("epochs", cfg.Epochs),
		zap.Int("train_samples", trainData.Len()),
		zap.Int("parameters", countParameters(params)),
		zap.String("optimizer", optimizerName(cfg.Optimizer)),
		zap.Float64("learning_rate", cfg.LearningRate),
		zap.Stringer("schedule", cfg.Schedule),
		zap.String("checkpoint_dir", cfg.CheckpointDir))

	fmt.Fprintln(out)
	fmt.Fprintln(out, "*** Training started! ***")
	fmt.Fprintln(out)

	history := make([]EpochStats, 0, cfg.Epochs)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		stats := EpochStats{Epoch: epoch, TestMSE: math.NaN()}

		if shouldCheckpoint(epoch, cfg.Epochs) {
			path := CheckpointPath(cfg.CheckpointDir, epoch)
			if err := SaveCheckpoint(path, model, cfg.CheckpointPrecision); err != nil {
				return history, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			stats.Checkpointed = true
			logger.Debug("checkpoint saved", zap.String("path", path))
			fmt.Fprintf(out, "Epoch: %d, Checkpoint saved!\n", epoch)
		} else {
			fmt.Fprintf(out, "Epoch: %d\n", epoch)
		}

		start := time.Now()
		totalLoss, batches := 0.0, 0
		for batch := range trainData.Batches() {
			totalLoss += TrainStep(model, batch, optimizer, scheduler.GetLR())
			batches++
		}
		stats.Duration = time.Since(start)
		if batches > 0 {
			stats.TrainMSE = totalLoss / float64(batches)
		}

		result, err := Evaluate(model, testData, cfg.Norm, EvalOptions{})
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if result != nil {
			stats.TestMSE = result.MSE
		}

		fmt.Fprintf(out, "Train time: %.3fs. Training MSE is %v. Test MSE is %v\n",
			stats.Duration.Seconds(), stats.TrainMSE, stats.TestMSE)
		history = append(history, stats)
	}

	logger.Info("training complete", zap.Int("epochs", cfg.Epochs))
	return history, nil
}
