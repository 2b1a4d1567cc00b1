package main

import (
	"fmt"
	"math"
	"math/rand"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The graph half of the model is an ordered list of stages. Each stage is
// one of three concrete types and the model decides how to run it with a
// type switch, never by looking at a name:
//
//   *MessagePassing  - needs the adjacency matrix as a second input
//   *Linear          - per-node projection with weights shared across nodes
//   *Activation      - elementwise nonlinearity
//
// The fully-connected head reuses *Linear and *Activation on 2D tensors.
//
// ===========================================================================

// Stage is one step of a stage list. The set of implementations is closed:
// *MessagePassing, *Linear and *Activation.
type Stage interface {
	stageKind() string
}

// MessagePassingMode selects what a message-passing stage returns.
type MessagePassingMode int

const (
	// PassThrough computes the neighbor aggregate but returns the stage
	// input unchanged. Published results were trained this way.
	PassThrough MessagePassingMode = iota

	// Aggregate returns the neighbor aggregate A @ x.
	Aggregate
)

// ParseMessagePassingMode maps a flag value to a mode.
func ParseMessagePassingMode(s string) (MessagePassingMode, error) {
	switch s {
	case "passthrough", "":
		return PassThrough, nil
	case "aggregate":
		return Aggregate, nil
	default:
		return 0, fmt.Errorf("unknown message-passing mode %q (want passthrough or aggregate)", s)
	}
}

func (m MessagePassingMode) String() string {
	switch m {
	case PassThrough:
		return "passthrough"
	case Aggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("MessagePassingMode(%d)", int(m))
	}
}

// MessagePassing aggregates neighbor node features through the adjacency
// structure. It has no parameters.
type MessagePassing struct {
	Mode MessagePassingMode
}

func (*MessagePassing) stageKind() string { return "message_passing" }

// Forward computes neighbors = A @ x for every graph in the batch.
//
// x: (B, N, F), adjacency: (B, N, N). In PassThrough mode the returned
// output is x itself, the same tensor, and neighbors is informational only.
func (mp *MessagePassing) Forward(x, adjacency *Tensor) (out, neighbors *Tensor) {
	neighbors = BatchMatMul(adjacency, x)
	if mp.Mode == Aggregate {
		return neighbors, neighbors
	}
	return x, neighbors
}

// Backward returns ∂L/∂x given ∂L/∂out.
func (mp *MessagePassing) Backward(adjacency, gradOut *Tensor) *Tensor {
	if mp.Mode == Aggregate {
		return BatchMatMulBackward(adjacency, gradOut)
	}
	return gradOut
}

// Linear is a fully-connected projection Y = X @ W + b with W (in, out).
// Applied to a (B, N, in) tensor it projects every node with the same
// weights.
type Linear struct {
	W *Tensor
	B *Tensor
}

func (*Linear) stageKind() string { return "linear" }

// NewLinear creates an in → out projection.
func NewLinear(rng *rand.Rand, in, out int) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	return &Linear{
		W: NewTensorUniform(rng, bound, in, out),
		B: NewTensorUniform(rng, bound, out),
	}
}

// In returns the input feature dimension.
func (l *Linear) In() int { return l.W.shape[0] }

// Out returns the output feature dimension.
func (l *Linear) Out() int { return l.W.shape[1] }

// Forward projects the last dimension of x from In() to Out() features.
func (l *Linear) Forward(x *Tensor) *Tensor {
	shape := x.Shape()
	last := shape[len(shape)-1]
	if last != l.In() {
		panic(fmt.Sprintf("linear: input features %d != %d", last, l.In()))
	}
	flat := x.Reshape(x.Size()/last, last)
	out := MatMul(flat, l.W)
	AddRowVector(out, l.B)
	shape[len(shape)-1] = l.Out()
	return out.Reshape(shape...)
}

// Backward accumulates ∂L/∂W and ∂L/∂b and returns ∂L/∂x.
func (l *Linear) Backward(x, gradOut *Tensor) *Tensor {
	shape := x.Shape()
	last := shape[len(shape)-1]
	rows := x.Size() / last

	gradX, gradW, gradB := LinearBackward(x.Reshape(rows, last), l.W, gradOut.Reshape(rows, l.Out()))
	l.W.AccumulateGrad(gradW)
	l.B.AccumulateGrad(gradB)
	return gradX.Reshape(shape...)
}

// ActivationFunc names an elementwise nonlinearity.
type ActivationFunc int

const (
	SigmoidActivation ActivationFunc = iota
	ReLUActivation
)

// Activation applies an elementwise nonlinearity.
type Activation struct {
	Func ActivationFunc
}

func (*Activation) stageKind() string { return "activation" }

// Forward applies the activation.
func (a *Activation) Forward(x *Tensor) *Tensor {
	switch a.Func {
	case ReLUActivation:
		return ReLU(x)
	default:
		return Sigmoid(x)
	}
}

// Backward returns ∂L/∂x from the stage input x, output y and ∂L/∂y.
func (a *Activation) Backward(x, y, gradOut *Tensor) *Tensor {
	switch a.Func {
	case ReLUActivation:
		return ReLUBackward(x, gradOut)
	default:
		return SigmoidBackward(y, gradOut)
	}
}
