package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the diagnostic logger shared by all commands. Progress
// and metrics go to stdout separately; the logger writes to stderr.
// Verbose enables debug output such as per-stage tensor shapes.
func newLogger(verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// logHardware records the CPU the run is using.
func logHardware(logger *zap.Logger, compute ComputeConfig) {
	f := DetectCPUFeatures()
	logger.Info("hardware",
		zap.String("cpu", GetCPUName()),
		zap.Int("physical_cores", f.PhysicalCores),
		zap.Int("logical_cores", f.LogicalCores),
		zap.Bool("avx2", f.HasAVX2),
		zap.Bool("avx512f", f.HasAVX512F),
		zap.Bool("neon", f.HasNEON),
		zap.Bool("parallel", compute.Parallel),
		zap.Int("workers", compute.numWorkers()))
}
