package main

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKFoldPartition(t *testing.T) {
	cases := []struct{ n, k int }{
		{10, 2}, {10, 10}, {492, 10}, {23, 5}, {7, 3}, {100, 7},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("n=%d/k=%d", c.n, c.k), func(t *testing.T) {
			folds, err := KFold(c.n, c.k, rand.New(rand.NewSource(int64(c.n*c.k))))
			require.NoError(t, err)
			require.Len(t, folds, c.k)

			seen := make([]int, c.n)
			for _, fold := range folds {
				assert.InDelta(t, float64(c.n)/float64(c.k), float64(len(fold)), 1)
				for _, idx := range fold {
					require.True(t, idx >= 0 && idx < c.n)
					seen[idx]++
				}
			}
			for idx, count := range seen {
				assert.Equal(t, 1, count, "index %d", idx)
			}
		})
	}
}

func TestKFoldFoldSizes(t *testing.T) {
	folds, err := KFold(23, 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	var sizes []int
	for _, f := range folds {
		sizes = append(sizes, len(f))
	}
	assert.Equal(t, []int{5, 5, 5, 4, 4}, sizes)
}

func TestKFoldSeeding(t *testing.T) {
	a, err := KFold(50, 5, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := KFold(50, 5, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	c, err := KFold(50, 5, rand.New(rand.NewSource(8)))
	require.NoError(t, err)

	assert.Equal(t, a, b, "same seed, same split")
	assert.NotEqual(t, a, c)
}

func TestKFoldHeldOutSetsAreShuffled(t *testing.T) {
	folds, err := KFold(200, 2, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	for _, fold := range folds {
		assert.False(t, slices.IsSorted(fold))
	}
}

func TestKFoldInvalid(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := KFold(10, 1, rng)
	assert.ErrorIs(t, err, ErrInvalidFolds)
	_, err = KFold(3, 4, rng)
	assert.ErrorIs(t, err, ErrInvalidFolds)
}

func TestFoldsArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indices.npz")
	folds, err := KFold(23, 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	require.NoError(t, SaveFolds(path, folds))

	got, err := LoadFolds(path, 5)
	require.NoError(t, err)
	assert.Equal(t, folds, got)

	_, err = LoadFolds(path, 4)
	assert.ErrorIs(t, err, ErrInvalidFolds)
}

func TestLoadFoldsWithoutSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indices.npz")
	require.NoError(t, writeArchive(path, []archiveEntry{
		{keyIndices, []int64{5, 2, 0, 3, 1, 4}},
	}))

	folds, err := LoadFolds(path, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{5, 2}, {0, 3}, {1, 4}}, folds)

	_, err = LoadFolds(path, 4)
	assert.ErrorIs(t, err, ErrInvalidFolds)
}
