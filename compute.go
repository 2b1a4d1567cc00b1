package main

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file spreads the batched matrix products of message passing across
// goroutines.
//
// INTENTION:
// The training pipeline itself is strictly sequential: one batch, one
// forward pass, one optimizer step. The only parallelism lives down here,
// inside the tensor layer, where every graph in a batch gets its own
// adjacency @ features product. Those products are independent, so the batch
// is cut into contiguous ranges and each worker writes its own slice of the
// output. No two workers touch the same memory, so parallel and
// single-threaded runs produce bit-identical results.
//
// PERFORMANCE CHARACTERISTICS:
// For B graphs of N nodes and F features:
//   - Work: B * N * N * F multiply-adds
//   - Small batches (B < MinBatchForParallel): goroutine overhead dominates
//   - Large padded graphs (N = 300): each product is ~450K flops, worth a worker
//
// ===========================================================================

// ComputeConfig controls parallelization behavior for tensor operations.
type ComputeConfig struct {
	// Parallel enables multi-threaded execution of batched products.
	Parallel bool

	// NumWorkers specifies the number of worker goroutines to use.
	// If 0, defaults to the detected physical core count.
	NumWorkers int

	// MinBatchForParallel is the smallest batch that gets split across
	// workers.
	MinBatchForParallel int
}

// DefaultComputeConfig returns a sensible default configuration.
func DefaultComputeConfig() ComputeConfig {
	return ComputeConfig{
		Parallel:            true,
		NumWorkers:          0,
		MinBatchForParallel: 4,
	}
}

// SingleThreadedConfig returns a configuration for single-threaded execution.
func SingleThreadedConfig() ComputeConfig {
	return ComputeConfig{
		Parallel:            false,
		NumWorkers:          1,
		MinBatchForParallel: 0,
	}
}

func (c ComputeConfig) numWorkers() int {
	if !c.Parallel {
		return 1
	}
	if c.NumWorkers > 0 {
		return c.NumWorkers
	}
	if cores := DetectCPUFeatures().PhysicalCores; cores > 0 {
		return cores
	}
	return runtime.NumCPU()
}

func (c ComputeConfig) shouldParallelize(batch int) bool {
	return c.Parallel && batch >= c.MinBatchForParallel && c.numWorkers() > 1
}

// Global compute configuration, set once by the CLI before training.
var globalComputeConfig = DefaultComputeConfig()

// SetGlobalComputeConfig sets the global compute configuration.
func SetGlobalComputeConfig(cfg ComputeConfig) {
	globalComputeConfig = cfg
}

// BatchMatMulWithConfig computes out[b] = op(a[b]) @ x[b] for every graph b,
// where op is the identity or, with transA, the transpose.
//
// a: (B, M, M) when transA, otherwise (B, M, K); x: (B, K, F) -> (B, M, F).
func BatchMatMulWithConfig(a, x *Tensor, transA bool, cfg ComputeConfig) *Tensor {
	if len(a.shape) != 3 || len(x.shape) != 3 || a.shape[0] != x.shape[0] {
		panic(fmt.Sprintf("tensor: cannot batch matmul shapes %v and %v", a.shape, x.shape))
	}
	batch, rows, inner := a.shape[0], a.shape[1], a.shape[2]
	if transA {
		rows, inner = inner, rows
	}
	if inner != x.shape[1] {
		panic(fmt.Sprintf("tensor: cannot batch matmul shapes %v and %v (transA=%v)", a.shape, x.shape, transA))
	}
	features := x.shape[2]
	out := NewTensor(batch, rows, features)

	aStride := a.shape[1] * a.shape[2]
	xStride := inner * features
	oStride := rows * features

	one := func(b int) {
		am := mat.NewDense(a.shape[1], a.shape[2], a.data[b*aStride:(b+1)*aStride])
		xm := mat.NewDense(inner, features, x.data[b*xStride:(b+1)*xStride])
		om := mat.NewDense(rows, features, out.data[b*oStride:(b+1)*oStride])
		if transA {
			om.Mul(am.T(), xm)
		} else {
			om.Mul(am, xm)
		}
	}

	if !cfg.shouldParallelize(batch) {
		for b := 0; b < batch; b++ {
			one(b)
		}
		return out
	}

	numWorkers := min(cfg.numWorkers(), batch)
	perWorker := (batch + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		end := min(start+perWorker, batch)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for b := start; b < end; b++ {
				one(b)
			}
		}(start, end)
	}
	wg.Wait()

	return out
}
