package main

import (
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	labels := []float64{1, -2, 4}
	preds := []float64{2, -2, 1}

	// (1+0+3) / (1+2+4)
	assert.InDelta(t, 4.0/7.0, MacroAvgErr(preds, labels), 1e-12)
	// (1+0+9) / 3
	assert.InDelta(t, 10.0/3.0, MeanSquaredError(preds, labels), 1e-12)

	assert.Zero(t, MacroAvgErr(labels, labels))
	assert.Zero(t, MeanSquaredError(labels, labels))

	assert.True(t, math.IsNaN(MacroAvgErr([]float64{1, 2}, []float64{0, 0})))
}

func TestEvaluateNilSource(t *testing.T) {
	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(1)), nil)
	res, err := Evaluate(model, nil, NormStats{Std: 1}, EvalOptions{})
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestEvaluateNilLoader(t *testing.T) {
	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(1)), nil)
	var loader *DataLoader
	res, err := Evaluate(model, loader, NormStats{Std: 1}, EvalOptions{})
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestEvaluateEmptySource(t *testing.T) {
	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(1)), nil)
	_, err := Evaluate(model, SliceSource{}, NormStats{Std: 1}, EvalOptions{Name: "Test"})
	assert.Error(t, err)
}

func TestEvaluateDenormalizes(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	ds := syntheticDataset(rng, 7, 3, 2)
	raw := append([]float64(nil), ds.Label...)
	norm, err := NormalizeLabels(ds)
	require.NoError(t, err)

	model := NewGraphModel(smallModelConfig(Aggregate), rng, nil)
	loader := NewDataLoader(ds, allIndices(7), 3, nil)

	var out bytes.Buffer
	res, err := Evaluate(model, loader, norm, EvalOptions{PrintPredictions: true, Name: "Training", Out: &out})
	require.NoError(t, err)

	assert.InDeltaSlice(t, raw, res.Labels, 1e-9, "labels come back on the raw scale")
	require.Len(t, res.Predictions, 7)

	var normPreds []float64
	for b := range loader.Batches() {
		normPreds = append(normPreds, model.Forward(b).Data()...)
	}
	assert.InDeltaSlice(t, norm.DenormalizeAll(normPreds), res.Predictions, 1e-12)
	assert.InDelta(t, MacroAvgErr(res.Predictions, raw), res.RelativeError, 1e-12)
	assert.InDelta(t, MeanSquaredError(res.Predictions, raw), res.MSE, 1e-12)

	report := out.String()
	assert.True(t, strings.HasPrefix(report, "Training predictions:\n"))
	// header, title, one line per sample, trailing blank line
	assert.Equal(t, 7+3, strings.Count(report, "\n"))
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &EvalResult{RelativeError: 0.125, MSE: 2}, nil)
	report := out.String()
	assert.Contains(t, report, "Training Relative Error: 12.500%")
	assert.Contains(t, report, "Training MSE: 2")
	assert.NotContains(t, report, "Test")
}
