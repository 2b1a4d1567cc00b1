package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RECOMMENDED READING:
//
// Graph Neural Networks:
// - Gilmer et al., "Neural Message Passing for Quantum Chemistry" (2017)
//   The message/update formulation the graph stages follow
// - Kipf & Welling, "Semi-Supervised Classification with Graph
//   Convolutional Networks" (2017)
//
// Deep Learning Foundations:
// - "Deep Learning" by Goodfellow, Bengio, Courville (2016)
//   Chapter 6: Deep Feedforward Networks - backpropagation

var (
	// ErrShapeMismatch indicates incompatible tensor shapes for an operation
	// or data whose size does not match the configured dimensions.
	ErrShapeMismatch = errors.New("tensor: shape mismatch")

	// ErrInvalidShape indicates an invalid tensor shape.
	ErrInvalidShape = errors.New("tensor: invalid shape")
)

// Tensor represents a multi-dimensional array of float64 values.
// It stores data in row-major (C-contiguous) order, batch dimension first.
//
// Tensor is not safe for concurrent use. Synchronization must be
// handled by the caller if needed.
type Tensor struct {
	data  []float64 // Flat array storing all elements
	shape []int     // Dimensions [batch, nodes, features, etc.]
	grad  []float64 // Gradient for backpropagation
}

// NewTensor creates a tensor with the given shape, initialized to zero.
// Panics if shape is invalid (empty or contains non-positive dimensions).
func NewTensor(shape ...int) *Tensor {
	size := shapeSize(shape)
	return &Tensor{
		data:  make([]float64, size),
		shape: append([]int(nil), shape...),
		grad:  make([]float64, size),
	}
}

// NewTensorFrom wraps data in a tensor of the given shape without copying.
// Returns ErrShapeMismatch if len(data) does not match the shape.
func NewTensorFrom(data []float64, shape ...int) (*Tensor, error) {
	if len(shape) == 0 {
		return nil, ErrInvalidShape
	}
	size := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidShape, shape)
		}
		size *= dim
	}
	if size != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}
	return &Tensor{
		data:  data,
		shape: append([]int(nil), shape...),
		grad:  make([]float64, size),
	}, nil
}

// NewTensorUniform creates a tensor with values drawn uniformly from
// [-bound, bound). Linear layers use bound = 1/sqrt(fan_in).
func NewTensorUniform(rng *rand.Rand, bound float64, shape ...int) *Tensor {
	t := NewTensor(shape...)
	for i := range t.data {
		t.data[i] = (2*rng.Float64() - 1) * bound
	}
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Dims returns the number of dimensions (rank) of the tensor.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Size returns the total number of elements in the tensor.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data exposes the underlying storage. Writes are visible to the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Grad exposes the gradient buffer.
func (t *Tensor) Grad() []float64 {
	return t.grad
}

// At returns the element at the given indices.
// Panics if indices are invalid - this is a programmer error.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.flatIndex(indices)]
}

// Set sets the element at the given indices.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.flatIndex(indices)] = value
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}

	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index[%d]=%d out of bounds [0,%d)", i, indices[i], t.shape[i]))
		}
		idx += indices[i] * stride
		stride *= t.shape[i]
	}
	return idx
}

// ZeroGrad clears the gradient buffer. Call before the backward pass.
func (t *Tensor) ZeroGrad() {
	clear(t.grad)
}

// Reshape returns a view of the tensor with a different shape.
// The returned tensor shares data and gradient storage.
func (t *Tensor) Reshape(newShape ...int) *Tensor {
	if shapeSize(newShape) != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape size %d to %v", len(t.data), newShape))
	}
	return &Tensor{
		data:  t.data,
		shape: append([]int(nil), newShape...),
		grad:  t.grad,
	}
}

// String returns a string representation of the tensor for debugging.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, size=%d)", t.shape, len(t.data))
}

// dense views a 2D tensor as a gonum matrix sharing the same storage.
func (t *Tensor) dense() *mat.Dense {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor: expected 2D tensor, got shape %v", t.shape))
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}

// ===========================================================================
// OPERATIONS
// ===========================================================================

// MatMul performs matrix multiplication: C = A @ B.
// A must be (M, K), B must be (K, N), result is (M, N).
func MatMul(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 || a.shape[1] != b.shape[0] {
		panic(fmt.Sprintf("tensor: cannot matmul shapes %v and %v", a.shape, b.shape))
	}
	out := NewTensor(a.shape[0], b.shape[1])
	out.dense().Mul(a.dense(), b.dense())
	return out
}

// MatMulTransA computes Aᵀ @ B without materializing the transpose.
func MatMulTransA(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 || a.shape[0] != b.shape[0] {
		panic(fmt.Sprintf("tensor: cannot matmul transpose of %v with %v", a.shape, b.shape))
	}
	out := NewTensor(a.shape[1], b.shape[1])
	out.dense().Mul(a.dense().T(), b.dense())
	return out
}

// MatMulTransB computes A @ Bᵀ without materializing the transpose.
func MatMulTransB(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 || a.shape[1] != b.shape[1] {
		panic(fmt.Sprintf("tensor: cannot matmul %v with transpose of %v", a.shape, b.shape))
	}
	out := NewTensor(a.shape[0], b.shape[0])
	out.dense().Mul(a.dense(), b.dense().T())
	return out
}

// BatchMatMul multiplies matching matrices of two batches:
// a (B, M, K) @ b (B, K, N) -> (B, M, N).
// Uses the global compute configuration to spread graphs across workers.
func BatchMatMul(a, b *Tensor) *Tensor {
	return BatchMatMulWithConfig(a, b, false, globalComputeConfig)
}

// AddRowVector adds a bias row to every row of a 2D tensor in place.
func AddRowVector(x, bias *Tensor) {
	rows, cols := x.shape[0], x.shape[1]
	if bias.Size() != cols {
		panic(fmt.Sprintf("tensor: bias size %d does not match %d columns", bias.Size(), cols))
	}
	for r := 0; r < rows; r++ {
		row := x.data[r*cols : (r+1)*cols]
		for c := range row {
			row[c] += bias.data[c]
		}
	}
}

// ConcatColumns joins two 2D tensors with the same row count side by side.
func ConcatColumns(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 || a.shape[0] != b.shape[0] {
		panic(fmt.Sprintf("tensor: cannot concat shapes %v and %v", a.shape, b.shape))
	}
	rows, ca, cb := a.shape[0], a.shape[1], b.shape[1]
	out := NewTensor(rows, ca+cb)
	for r := 0; r < rows; r++ {
		copy(out.data[r*(ca+cb):], a.data[r*ca:(r+1)*ca])
		copy(out.data[r*(ca+cb)+ca:], b.data[r*cb:(r+1)*cb])
	}
	return out
}

// ===========================================================================
// ACTIVATION FUNCTIONS
// ===========================================================================

// ReLU applies Rectified Linear Unit: f(x) = max(0, x).
func ReLU(x *Tensor) *Tensor {
	out := NewTensor(x.shape...)
	for i, v := range x.data {
		out.data[i] = math.Max(0, v)
	}
	return out
}

// Sigmoid applies the logistic function 1 / (1 + e^-x).
func Sigmoid(x *Tensor) *Tensor {
	out := NewTensor(x.shape...)
	for i, v := range x.data {
		out.data[i] = 1 / (1 + math.Exp(-v))
	}
	return out
}

// ===========================================================================
// HELPERS
// ===========================================================================

func shapeSize(shape []int) int {
	if len(shape) == 0 {
		panic("tensor: shape cannot be empty")
	}
	size := 1
	for i, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: shape[%d] must be positive, got %d", i, dim))
		}
		size *= dim
	}
	return size
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
