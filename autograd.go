package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Backward operations for the handful of primitives the graph model is
// built from. There is no tape: the model records what it needs during
// ForwardWithCache and walks its stage list in reverse, calling these.
//
// THE CHAIN RULE:
//
// Given: y = f(x) and z = g(y)
// Backward: given ∂L/∂z, compute ∂L/∂x = ∂L/∂z · ∂z/∂y · ∂y/∂x
//
// Every function here takes the gradient flowing in from above (gradY) plus
// whatever forward values the derivative depends on, and returns the
// gradient with respect to its inputs.
//
// ===========================================================================

import (
	"fmt"
)

// LinearBackward computes gradients for Y = X @ W + b.
//
// Given:
//   - x: (M, in), w: (in, out), gradY: (M, out)
//
// Compute:
//   - gradX = gradY @ Wᵀ
//   - gradW = Xᵀ @ gradY
//   - gradB = Σ_rows gradY
func LinearBackward(x, w, gradY *Tensor) (gradX, gradW, gradB *Tensor) {
	gradX = MatMulTransB(gradY, w)
	gradW = MatMulTransA(x, gradY)

	rows, cols := gradY.shape[0], gradY.shape[1]
	gradB = NewTensor(cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			gradB.data[c] += gradY.data[r*cols+c]
		}
	}

	return gradX, gradW, gradB
}

// ReLUBackward computes gradient for ReLU activation.
//
//	∂L/∂X[i] = ∂L/∂Y[i] * indicator(X[i] > 0)
func ReLUBackward(x, gradY *Tensor) *Tensor {
	gradX := NewTensor(x.shape...)
	for i := range x.data {
		if x.data[i] > 0 {
			gradX.data[i] = gradY.data[i]
		}
	}
	return gradX
}

// SigmoidBackward computes gradient for the logistic function from its
// output y = σ(x):
//
//	∂L/∂X[i] = ∂L/∂Y[i] * y[i] * (1 - y[i])
func SigmoidBackward(y, gradY *Tensor) *Tensor {
	gradX := NewTensor(y.shape...)
	for i, v := range y.data {
		gradX.data[i] = gradY.data[i] * v * (1 - v)
	}
	return gradX
}

// BatchMatMulBackward computes the gradient of Y[b] = A[b] @ X[b] with
// respect to X. The adjacency is an input, not a parameter, so its gradient
// is never needed.
//
//	∂L/∂X[b] = A[b]ᵀ @ ∂L/∂Y[b]
func BatchMatMulBackward(a, gradY *Tensor) *Tensor {
	return BatchMatMulWithConfig(a, gradY, true, globalComputeConfig)
}

// ConcatColumnsBackward splits the gradient of ConcatColumns(a, b) back into
// its two halves; leftCols is the column count of a.
func ConcatColumnsBackward(gradY *Tensor, leftCols int) (gradA, gradB *Tensor) {
	rows, cols := gradY.shape[0], gradY.shape[1]
	rightCols := cols - leftCols
	gradA = NewTensor(rows, leftCols)
	gradB = NewTensor(rows, rightCols)
	for r := 0; r < rows; r++ {
		copy(gradA.data[r*leftCols:], gradY.data[r*cols:r*cols+leftCols])
		copy(gradB.data[r*rightCols:], gradY.data[r*cols+leftCols:(r+1)*cols])
	}
	return gradA, gradB
}

// MSELoss computes the mean squared error between predictions and targets:
//
//	loss = (1/n) Σ (pred[i] - target[i])²
func MSELoss(pred, target *Tensor) float64 {
	if !shapeEqual(pred.shape, target.shape) {
		panic(fmt.Sprintf("MSELoss: prediction shape %v != target shape %v", pred.shape, target.shape))
	}
	total := 0.0
	for i := range pred.data {
		d := pred.data[i] - target.data[i]
		total += d * d
	}
	return total / float64(len(pred.data))
}

// MSELossBackward computes ∂loss/∂pred = 2 (pred - target) / n.
func MSELossBackward(pred, target *Tensor) *Tensor {
	grad := NewTensor(pred.shape...)
	n := float64(len(pred.data))
	for i := range pred.data {
		grad.data[i] = 2 * (pred.data[i] - target.data[i]) / n
	}
	return grad
}

// AccumulateGrad adds gradient to a tensor's gradient buffer.
func (t *Tensor) AccumulateGrad(grad *Tensor) {
	if len(t.grad) != len(grad.data) {
		panic(fmt.Sprintf("AccumulateGrad: size %d != %d", len(t.grad), len(grad.data)))
	}
	for i := range t.grad {
		t.grad[i] += grad.data[i]
	}
}
