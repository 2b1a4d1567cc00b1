package main

import (
	"math/rand"
)

// syntheticDataset builds a dataset of random symmetric 0/1 adjacency
// matrices, random node attributes and labels that depend on both.
func syntheticDataset(rng *rand.Rand, numGraphs, n, d int) *GraphDataset {
	ds := &GraphDataset{
		Dims:      DatasetDims{NumGraphs: numGraphs, MaxNodeNum: n, AtomAttrDim: d},
		Adjacency: make([]float64, numGraphs*n*n),
		NodeAttr:  make([]float64, numGraphs*n*d),
		T:         make([]float64, numGraphs),
		Label:     make([]float64, numGraphs),
	}
	for g := 0; g < numGraphs; g++ {
		adj := ds.Adjacency[g*n*n : (g+1)*n*n]
		edges := 0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.Float64() < 0.4 {
					adj[i*n+j], adj[j*n+i] = 1, 1
					edges++
				}
			}
		}
		attrSum := 0.0
		for k := range ds.NodeAttr[g*n*d : (g+1)*n*d] {
			v := rng.Float64()
			ds.NodeAttr[g*n*d+k] = v
			attrSum += v
		}
		ds.T[g] = rng.Float64()
		ds.Label[g] = 100 + float64(edges) + attrSum + 3*ds.T[g]
	}
	return ds
}

func newTestRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func smallModelConfig(mode MessagePassingMode) ModelConfig {
	return ModelConfig{MaxNodeNum: 3, AtomAttrDim: 2, LatentDim: 2, MessagePassing: mode}
}

// singleGraphBatch is a fixed 3-node path graph with two attributes per
// node.
func singleGraphBatch() *Batch {
	adj, _ := NewTensorFrom([]float64{
		0, 1, 0,
		1, 0, 1,
		0, 1, 0,
	}, 1, 3, 3)
	attr, _ := NewTensorFrom([]float64{
		1, 0,
		0, 1,
		1, 1,
	}, 1, 3, 2)
	tm, _ := NewTensorFrom([]float64{0.5}, 1, 1)
	label, _ := NewTensorFrom([]float64{1.25}, 1, 1)
	return &Batch{Adjacency: adj, NodeAttr: attr, T: tm, Label: label, Indices: []int{0}}
}

func snapshotParameters(m *GraphModel) [][]float64 {
	var out [][]float64
	for _, p := range m.Parameters() {
		out = append(out, append([]float64(nil), p.data...))
	}
	return out
}
