package main

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
)

// EvalResult holds the metrics of one evaluation pass, on the label's
// original scale.
type EvalResult struct {
	RelativeError float64 // macro-average relative error
	MSE           float64
	Labels        []float64
	Predictions   []float64
}

// EvalOptions controls the optional per-sample report of Evaluate.
type EvalOptions struct {
	// PrintPredictions writes every label/prediction pair to Out.
	PrintPredictions bool
	// Name labels the report ("Training", "Test").
	Name string
	Out  io.Writer
}

// Evaluate runs one inference-only pass over src, de-normalizes labels and
// predictions with norm and computes the error metrics. A nil src, or a nil
// *DataLoader, returns a nil result and no error.
func Evaluate(model *GraphModel, src BatchSource, norm NormStats, opts EvalOptions) (*EvalResult, error) {
	if src == nil {
		return nil, nil
	}
	if l, ok := src.(*DataLoader); ok && l == nil {
		return nil, nil
	}

	labels := make([]float64, 0, src.Len())
	preds := make([]float64, 0, src.Len())
	for batch := range src.Batches() {
		pred := model.Forward(batch)
		labels = append(labels, batch.Label.data...)
		preds = append(preds, pred.data...)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("evaluate %s: no samples", opts.Name)
	}

	labels = norm.DenormalizeAll(labels)
	preds = norm.DenormalizeAll(preds)

	result := &EvalResult{
		RelativeError: MacroAvgErr(preds, labels),
		MSE:           MeanSquaredError(preds, labels),
		Labels:        labels,
		Predictions:   preds,
	}

	if opts.PrintPredictions && opts.Out != nil {
		PrintPredictions(opts.Out, labels, preds, opts.Name)
	}

	return result, nil
}

// MacroAvgErr returns Σ|pred-label| / Σ|label|. It is NaN when every label
// is zero.
func MacroAvgErr(preds, labels []float64) float64 {
	total := floats.Norm(labels, 1)
	if total == 0 {
		return math.NaN()
	}
	return floats.Distance(preds, labels, 1) / total
}

// MeanSquaredError returns (1/n) Σ (pred-label)².
func MeanSquaredError(preds, labels []float64) float64 {
	d := floats.Distance(preds, labels, 2)
	return d * d / float64(len(preds))
}

// PrintPredictions writes one label/prediction pair per line.
func PrintPredictions(w io.Writer, labels, preds []float64, name string) {
	fmt.Fprintf(w, "%s predictions:\n", name)
	fmt.Fprintf(w, "%8s %14s %14s\n", "sample", "label", "prediction")
	for i := range labels {
		fmt.Fprintf(w, "%8d %14.6f %14.6f\n", i, labels[i], preds[i])
	}
	fmt.Fprintln(w)
}

// printReport writes the final training/test summary.
func printReport(w io.Writer, train, test *EvalResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--------------------")
	fmt.Fprintln(w)
	if train != nil {
		fmt.Fprintf(w, "Training Relative Error: %.3f%%\n", 100*train.RelativeError)
	}
	if test != nil {
		fmt.Fprintf(w, "Test Relative Error: %.3f%%\n", 100*test.RelativeError)
	}
	if train != nil {
		fmt.Fprintf(w, "Training MSE: %v\n", train.MSE)
	}
	if test != nil {
		fmt.Fprintf(w, "Test MSE: %v\n", test.MSE)
	}
}
