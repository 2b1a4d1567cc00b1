package main

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCheckpoint(t *testing.T) {
	tests := []struct {
		epochs int
		want   []int
	}{
		{epochs: 1000, want: []int{0, 100, 200, 300, 400, 500, 600, 700, 800, 900, 999}},
		{epochs: 20, want: []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 19}},
		{epochs: 15, want: []int{0, 3, 6, 9, 12, 14}},
		{epochs: 10, want: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{epochs: 5, want: []int{0, 1, 2, 3, 4}},
		{epochs: 1, want: []int{0}},
	}

	for _, tt := range tests {
		var got []int
		for epoch := 0; epoch < tt.epochs; epoch++ {
			if shouldCheckpoint(epoch, tt.epochs) {
				got = append(got, epoch)
			}
		}
		assert.Equal(t, tt.want, got, "epochs=%d", tt.epochs)
	}
}

func trainFixture(t *testing.T, numGraphs int) (*GraphDataset, NormStats, *DataLoader, *DataLoader) {
	t.Helper()
	rng := rand.New(rand.NewSource(8))
	ds := syntheticDataset(rng, numGraphs, 3, 2)
	norm, err := NormalizeLabels(ds)
	require.NoError(t, err)

	folds, err := KFold(numGraphs, 3, rng)
	require.NoError(t, err)
	train, test, err := NewDataLoaders(ds, folds, 0, 2, rng)
	require.NoError(t, err)
	return ds, norm, train, test
}

func TestTrainCheckpointCadence(t *testing.T) {
	_, norm, train, test := trainFixture(t, 6)
	dir := filepath.Join(t.TempDir(), "nested", "checkpoints")

	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(1)), nil)
	var out bytes.Buffer
	history, err := Train(model, train, test, TrainConfig{
		Epochs:        20,
		LearningRate:  1e-4,
		CheckpointDir: dir,
		Norm:          norm,
		Out:           &out,
	})
	require.NoError(t, err)
	require.Len(t, history, 20)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var files []string
	for _, e := range entries {
		files = append(files, e.Name())
	}

	var want []string
	for _, epoch := range []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 19} {
		want = append(want, filepath.Base(CheckpointPath(dir, epoch)))
	}
	assert.ElementsMatch(t, want, files)

	for _, s := range history {
		assert.Equal(t, slices.Contains([]int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 19}, s.Epoch), s.Checkpointed)
		assert.False(t, math.IsNaN(s.TestMSE))
	}

	report := out.String()
	assert.Contains(t, report, "*** Training started! ***")
	assert.Contains(t, report, "Epoch: 0, Checkpoint saved!")
	assert.Contains(t, report, "Epoch: 1\n")
	assert.Equal(t, 20, strings.Count(report, "Train time: "))
}

func TestTrainFirstCheckpointHoldsInitialWeights(t *testing.T) {
	_, norm, train, _ := trainFixture(t, 6)
	dir := t.TempDir()

	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(1)), nil)
	initial := snapshotParameters(model)

	_, err := Train(model, train, nil, TrainConfig{
		Epochs:        2,
		LearningRate:  1e-3,
		CheckpointDir: dir,
		Norm:          norm,
	})
	require.NoError(t, err)
	assert.NotEqual(t, initial, snapshotParameters(model), "training should move the weights")

	restored := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(99)), nil)
	require.NoError(t, LoadCheckpoint(CheckpointPath(dir, 0), restored))
	assert.Equal(t, initial, snapshotParameters(restored))

	require.NoError(t, LoadCheckpoint(CheckpointPath(dir, 1), restored))
	assert.NotEqual(t, initial, snapshotParameters(restored))
}

func TestTrainWithoutTestSet(t *testing.T) {
	_, norm, train, _ := trainFixture(t, 6)

	model := NewGraphModel(smallModelConfig(Aggregate), rand.New(rand.NewSource(1)), nil)
	history, err := Train(model, train, nil, TrainConfig{
		Epochs:        3,
		LearningRate:  1e-3,
		CheckpointDir: t.TempDir(),
		Norm:          norm,
	})
	require.NoError(t, err)
	for _, s := range history {
		assert.True(t, math.IsNaN(s.TestMSE))
		assert.False(t, math.IsNaN(s.TrainMSE))
	}
}

func TestTrainReducesLoss(t *testing.T) {
	_, norm, train, _ := trainFixture(t, 12)

	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(2)), nil)
	history, err := Train(model, train, nil, TrainConfig{
		Epochs:        30,
		LearningRate:  1e-3,
		CheckpointDir: t.TempDir(),
		Norm:          norm,
	})
	require.NoError(t, err)
	assert.Less(t, history[len(history)-1].TrainMSE, history[0].TrainMSE)
}

func TestTrainWithSGD(t *testing.T) {
	_, norm, train, test := trainFixture(t, 6)

	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(1)), nil)
	initial := snapshotParameters(model)
	history, err := Train(model, train, test, TrainConfig{
		Epochs:        2,
		LearningRate:  1e-2,
		Optimizer:     "sgd",
		CheckpointDir: t.TempDir(),
		Norm:          norm,
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.NotEqual(t, initial, snapshotParameters(model))
}

func TestTrainRejectsUnknownOptimizer(t *testing.T) {
	_, norm, train, _ := trainFixture(t, 6)
	dir := filepath.Join(t.TempDir(), "never")
	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(1)), nil)

	_, err := Train(model, train, nil, TrainConfig{Epochs: 1, Optimizer: "lbfgs", CheckpointDir: dir, Norm: norm})
	assert.Error(t, err)
	assert.NoDirExists(t, dir)
}

func TestTrainRejectsNoEpochs(t *testing.T) {
	_, norm, train, _ := trainFixture(t, 6)
	model := NewGraphModel(smallModelConfig(PassThrough), rand.New(rand.NewSource(1)), nil)
	_, err := Train(model, train, nil, TrainConfig{Epochs: 0, CheckpointDir: t.TempDir(), Norm: norm})
	assert.Error(t, err)
}
