package main

import (
	"fmt"
	"iter"
	"math/rand"
	"slices"

	"github.com/sbinet/npyio/npz"
)

// Keys of the graph dataset archive. Every array is float64, row-major,
// sample dimension first.
const (
	keyAdjacency = "adjacency" // (num_graphs, N, N)
	keyNodeAttr  = "node_attr" // (num_graphs, N, D)
	keyT         = "t"         // (num_graphs,)
	keyLabel     = "label"     // (num_graphs,)
)

// DatasetDims are the sizes a dataset archive must agree with.
type DatasetDims struct {
	NumGraphs   int
	MaxNodeNum  int
	AtomAttrDim int
}

// GraphDataset holds every padded graph of a dataset in flat arrays.
type GraphDataset struct {
	Dims      DatasetDims
	Adjacency []float64
	NodeAttr  []float64
	T         []float64
	Label     []float64
}

// Len returns the number of graphs.
func (ds *GraphDataset) Len() int {
	return ds.Dims.NumGraphs
}

// Validate checks that every array matches the declared dimensions.
func (ds *GraphDataset) Validate() error {
	d := ds.Dims
	checks := []struct {
		name string
		got  int
		want int
	}{
		{keyAdjacency, len(ds.Adjacency), d.NumGraphs * d.MaxNodeNum * d.MaxNodeNum},
		{keyNodeAttr, len(ds.NodeAttr), d.NumGraphs * d.MaxNodeNum * d.AtomAttrDim},
		{keyT, len(ds.T), d.NumGraphs},
		{keyLabel, len(ds.Label), d.NumGraphs},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("%w: %s has %d values, want %d for num_graphs=%d max_node_num=%d atom_attr_dim=%d",
				ErrShapeMismatch, c.name, c.got, c.want, d.NumGraphs, d.MaxNodeNum, d.AtomAttrDim)
		}
	}
	return nil
}

// LoadGraphDataset reads a dataset archive and checks it against dims.
func LoadGraphDataset(path string, dims DatasetDims) (*GraphDataset, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer r.Close()

	ds := &GraphDataset{Dims: dims}
	targets := []struct {
		key string
		dst *[]float64
	}{
		{keyAdjacency, &ds.Adjacency},
		{keyNodeAttr, &ds.NodeAttr},
		{keyT, &ds.T},
		{keyLabel, &ds.Label},
	}
	for _, tgt := range targets {
		if err := readArray(r, path, tgt.key, tgt.dst); err != nil {
			return nil, err
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// SaveGraphDataset writes a dataset archive.
func SaveGraphDataset(path string, ds *GraphDataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	return writeArchive(path, []archiveEntry{
		{keyAdjacency, ds.Adjacency},
		{keyNodeAttr, ds.NodeAttr},
		{keyT, ds.T},
		{keyLabel, ds.Label},
	})
}

// ReadLabelCount returns the number of graphs in a dataset archive without
// knowing its dimensions.
func ReadLabelCount(path string) (int, error) {
	r, err := npz.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer r.Close()

	var labels []float64
	if err := readArray(r, path, keyLabel, &labels); err != nil {
		return 0, err
	}
	return len(labels), nil
}

// Batch is one mini-batch of graphs, batch dimension first.
type Batch struct {
	Adjacency *Tensor // (B, N, N)
	NodeAttr  *Tensor // (B, N, D)
	T         *Tensor // (B, 1)
	Label     *Tensor // (B, 1), normalized
	Indices   []int   // dataset index of every row
}

// Size returns the number of graphs in the batch.
func (b *Batch) Size() int {
	return b.Label.shape[0]
}

// Gather builds a batch from the graphs at the given dataset indices.
func (ds *GraphDataset) Gather(indices []int) *Batch {
	n, d := ds.Dims.MaxNodeNum, ds.Dims.AtomAttrDim
	bs := len(indices)

	b := &Batch{
		Adjacency: NewTensor(bs, n, n),
		NodeAttr:  NewTensor(bs, n, d),
		T:         NewTensor(bs, 1),
		Label:     NewTensor(bs, 1),
		Indices:   slices.Clone(indices),
	}
	for row, idx := range indices {
		copy(b.Adjacency.data[row*n*n:(row+1)*n*n], ds.Adjacency[idx*n*n:(idx+1)*n*n])
		copy(b.NodeAttr.data[row*n*d:(row+1)*n*d], ds.NodeAttr[idx*n*d:(idx+1)*n*d])
		b.T.data[row] = ds.T[idx]
		b.Label.data[row] = ds.Label[idx]
	}
	return b
}

// BatchSource yields the batches of one pass over a data split.
type BatchSource interface {
	// Batches yields every batch of one epoch in order.
	Batches() iter.Seq[*Batch]
	// Len returns the number of samples per epoch.
	Len() int
	// NumBatches returns the number of batches per epoch.
	NumBatches() int
}

// DataLoader serves mini-batches of a subset of a dataset.
type DataLoader struct {
	dataset   *GraphDataset
	indices   []int
	batchSize int
	rng       *rand.Rand // nil keeps the index order fixed
}

// NewDataLoader creates a loader over the given dataset indices. When rng is
// non-nil the order is reshuffled at the start of every pass.
func NewDataLoader(ds *GraphDataset, indices []int, batchSize int, rng *rand.Rand) *DataLoader {
	if batchSize <= 0 {
		panic(fmt.Sprintf("dataloader: batch size must be positive, got %d", batchSize))
	}
	return &DataLoader{
		dataset:   ds,
		indices:   slices.Clone(indices),
		batchSize: batchSize,
		rng:       rng,
	}
}

// Len returns the number of samples per epoch.
func (l *DataLoader) Len() int {
	return len(l.indices)
}

// NumBatches returns the number of batches per epoch; the last may be short.
func (l *DataLoader) NumBatches() int {
	return (len(l.indices) + l.batchSize - 1) / l.batchSize
}

// Batches yields one epoch of batches.
func (l *DataLoader) Batches() iter.Seq[*Batch] {
	return func(yield func(*Batch) bool) {
		order := l.indices
		if l.rng != nil {
			order = slices.Clone(l.indices)
			l.rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		for start := 0; start < len(order); start += l.batchSize {
			end := min(start+l.batchSize, len(order))
			if !yield(l.dataset.Gather(order[start:end])) {
				return
			}
		}
	}
}

// NewDataLoaders splits a dataset by fold: fold runningIndex is the test set
// and every other fold, in fold order, the training set. The training loader
// reshuffles every epoch with rng; the test loader keeps fold order.
func NewDataLoaders(ds *GraphDataset, folds [][]int, runningIndex, batchSize int, rng *rand.Rand) (train, test *DataLoader, err error) {
	if runningIndex < 0 || runningIndex >= len(folds) {
		return nil, nil, fmt.Errorf("%w: running_index %d outside [0,%d)", ErrInvalidFolds, runningIndex, len(folds))
	}

	var trainIdx []int
	for i, fold := range folds {
		for _, idx := range fold {
			if idx < 0 || idx >= ds.Len() {
				return nil, nil, fmt.Errorf("%w: index %d in fold %d outside dataset of %d graphs",
					ErrInvalidFolds, idx, i, ds.Len())
			}
		}
		if i != runningIndex {
			trainIdx = append(trainIdx, fold...)
		}
	}

	train = NewDataLoader(ds, trainIdx, batchSize, rng)
	test = NewDataLoader(ds, folds[runningIndex], batchSize, nil)
	return train, test, nil
}

// SliceSource is a BatchSource over prebuilt batches.
type SliceSource []*Batch

// Batches yields the batches in slice order.
func (s SliceSource) Batches() iter.Seq[*Batch] {
	return slices.Values(s)
}

// NumBatches returns the number of batches.
func (s SliceSource) NumBatches() int {
	return len(s)
}

// Len returns the total number of samples.
func (s SliceSource) Len() int {
	n := 0
	for _, b := range s {
		n += b.Size()
	}
	return n
}
