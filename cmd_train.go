package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"go.uber.org/zap"
)

// ===========================================================================
// TRAINING CLI
// ===========================================================================
//
// Pipeline: load fold split → load dataset → build loaders → build model →
// train → final evaluation on the full training and test folds.
//
// Flag names and defaults match existing experiment invocations. Parsed
// flags become explicit config values; nothing below reads flags after
// parsing.
//
// ===========================================================================

// runFlags are the flags shared by train and evaluate.
type runFlags struct {
	maxNodeNum   *int
	atomAttrDim  *int
	numGraphs    *int
	latentDim    *int
	batchSize    *int
	seed         *int64
	runningIndex *int
	folds        *int
	idxPath      *string
	dataPath     *string
	normPath     *string
	mpMode       *string
	workers      *int
	printPreds   *bool
	verbose      *bool
}

func registerRunFlags(fs *flag.FlagSet) *runFlags {
	return &runFlags{
		maxNodeNum:   fs.Int("max_node_num", 300, "Padded node count of every graph"),
		atomAttrDim:  fs.Int("atom_attr_dim", 5, "Node attribute width"),
		numGraphs:    fs.Int("num_graphs", 492, "Number of graphs in the dataset"),
		latentDim:    fs.Int("latent_dim", 5, "Per-node width after the graph stages"),
		batchSize:    fs.Int("batch_size", 32, "Batch size"),
		seed:         fs.Int64("seed", 123, "Random seed for weights and batch order"),
		runningIndex: fs.Int("running_index", 0, "Fold held out as the test set"),
		folds:        fs.Int("folds", 10, "Number of folds in the split"),
		idxPath:      fs.String("idx_path", "data/indices.npz", "Fold index archive from the split command"),
		dataPath:     fs.String("data", "data/graphs.npz", "Graph dataset archive"),
		normPath:     fs.String("norm", "data/norm.npz", "Label normalization statistics"),
		mpMode:       fs.String("message_passing", "passthrough", "Message-passing output: passthrough or aggregate"),
		workers:      fs.Int("workers", 0, "Workers for batched products (0 = physical cores, 1 = single-threaded)"),
		printPreds:   fs.Bool("print_preds", true, "Print every label/prediction pair in the final report"),
		verbose:      fs.Bool("v", false, "Debug logging"),
	}
}

func (f *runFlags) modelConfig() (ModelConfig, error) {
	mode, err := ParseMessagePassingMode(*f.mpMode)
	if err != nil {
		return ModelConfig{}, err
	}
	cfg := ModelConfig{
		MaxNodeNum:     *f.maxNodeNum,
		AtomAttrDim:    *f.atomAttrDim,
		LatentDim:      *f.latentDim,
		MessagePassing: mode,
	}
	return cfg, cfg.Validate()
}

func (f *runFlags) computeConfig() ComputeConfig {
	if *f.workers == 1 {
		return SingleThreadedConfig()
	}
	cfg := DefaultComputeConfig()
	cfg.NumWorkers = *f.workers
	return cfg
}

// runData is everything loaded from disk for one fold.
type runData struct {
	train *DataLoader
	test  *DataLoader
	norm  NormStats
}

func (f *runFlags) load(rng *rand.Rand, logger *zap.Logger) (*runData, error) {
	if *f.batchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be positive, got %d", *f.batchSize)
	}

	folds, err := LoadFolds(*f.idxPath, *f.folds)
	if err != nil {
		return nil, err
	}

	ds, err := LoadGraphDataset(*f.dataPath, DatasetDims{
		NumGraphs:   *f.numGraphs,
		MaxNodeNum:  *f.maxNodeNum,
		AtomAttrDim: *f.atomAttrDim,
	})
	if err != nil {
		return nil, err
	}

	train, test, err := NewDataLoaders(ds, folds, *f.runningIndex, *f.batchSize, rng)
	if err != nil {
		return nil, err
	}

	norm, err := LoadNormStats(*f.normPath)
	if err != nil {
		return nil, err
	}

	logger.Info("data loaded",
		zap.String("dataset", *f.dataPath),
		zap.String("indices", *f.idxPath),
		zap.Int("running_index", *f.runningIndex),
		zap.Int("train_samples", train.Len()),
		zap.Int("test_samples", test.Len()),
		zap.Float64("label_mean", norm.Mean),
		zap.Float64("label_std", norm.Std))

	return &runData{train: train, test: test, norm: norm}, nil
}

// finalReport evaluates both splits and prints the summary.
func finalReport(model *GraphModel, data *runData, printPreds bool) error {
	trainRes, err := Evaluate(model, data.train, data.norm, EvalOptions{
		PrintPredictions: printPreds, Name: "Training", Out: os.Stdout,
	})
	if err != nil {
		return err
	}
	testRes, err := Evaluate(model, data.test, data.norm, EvalOptions{
		PrintPredictions: printPreds, Name: "Test", Out: os.Stdout,
	})
	if err != nil {
		return err
	}
	printReport(os.Stdout, trainRes, testRes)
	return nil
}

// RunTrainCommand implements the training CLI.
func RunTrainCommand(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	rf := registerRunFlags(fs)

	epochs := fs.Int("epochs", 1000, "Number of training epochs")
	lr := fs.Float64("learning_rate", 1e-4, "Base learning rate")
	minLR := fs.Float64("min_learning_rate", 1e-5, "Final learning rate of the cosine schedule")
	schedule := fs.String("lr_schedule", "constant", "Learning-rate schedule: constant or cosine")
	optimizerFlag := fs.String("optimizer", "adam", "Optimizer: adam or sgd")
	weightDecay := fs.Float64("weight_decay", 0, "L2 weight decay added to every gradient")
	checkpointDir := fs.String("checkpoint", "checkpoints/", "Checkpoint directory")
	precisionFlag := fs.String("checkpoint_precision", "fp64", "Checkpoint weight encoding: fp64 or fp16")

	if err := fs.Parse(args); err != nil {
		return err
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
	sched, err := ParseLRSchedule(*schedule)
	if err != nil {
		return err
	}
	precision, err := ParsePrecision(*precisionFlag)
	if err != nil {
		return err
	}

	if err := ensureDir(*checkpointDir); err != nil {
		return err
	}

	compute := rf.computeConfig()
	SetGlobalComputeConfig(compute)
	logHardware(logger, compute)

	rng := rand.New(rand.NewSource(*rf.seed))

	data, err := rf.load(rng, logger)
	if err != nil {
		return err
	}

	model := NewGraphModel(modelCfg, rng, logger)
	logger.Info("model built",
		zap.Int("max_node_num", modelCfg.MaxNodeNum),
		zap.Int("atom_attr_dim", modelCfg.AtomAttrDim),
		zap.Int("latent_dim", modelCfg.LatentDim),
		zap.Stringer("message_passing", modelCfg.MessagePassing),
		zap.Int("parameters", countParameters(model.Parameters())))

	_, err = Train(model, data.train, data.test, TrainConfig{
		Epochs:              *epochs,
		LearningRate:        *lr,
		MinLearningRate:     *minLR,
		Schedule:            sched,
		Optimizer:           *optimizerFlag,
		WeightDecay:         *weightDecay,
		CheckpointDir:       *checkpointDir,
		CheckpointPrecision: precision,
		Norm:                data.norm,
		Out:                 os.Stdout,
		Logger:              logger,
	})
	if err != nil {
		return err
	}

	return finalReport(model, data, *rf.printPreds)
}
