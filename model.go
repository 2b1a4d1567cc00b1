package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the graph regression model.
//
// ARCHITECTURE:
//
//   node_attr (B, N, D)   adjacency (B, N, N)   t (B, 1)
//        │                      │                  │
//   MessagePassing ◄────────────┤                  │
//   Linear(D → 50)              │                  │
//   Sigmoid                     │                  │
//   MessagePassing ◄────────────┘                  │
//   Linear(50 → L)                                 │
//   Sigmoid                                        │
//        │ (B, N, L)                               │
//   flatten → (B, N*L) ── concat ◄─────────────────┘
//        │ (B, N*L + 1)
//   Linear(N*L+1 → 1024) → ReLU → Linear(1024 → 128) → ReLU → Linear(128 → 1)
//        │
//   prediction (B, 1)
//
// Projections act on every node with shared weights, so the graph stages do
// not care how many real atoms a molecule has. The head does: flattening
// ties it to the padded size N, which is why every sample in a dataset must
// share max_node_num.
//
// ===========================================================================

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

// hiddenDim is the width of the first per-node projection.
const hiddenDim = 50

// ModelConfig holds the dimensions of a GraphModel.
type ModelConfig struct {
	MaxNodeNum     int // N: padded node count of every graph
	AtomAttrDim    int // D: node attribute width
	LatentDim      int // L: per-node width after the graph stages
	MessagePassing MessagePassingMode
}

// Validate reports non-positive dimensions.
func (c ModelConfig) Validate() error {
	if c.MaxNodeNum <= 0 || c.AtomAttrDim <= 0 || c.LatentDim <= 0 {
		return fmt.Errorf("%w: max_node_num=%d atom_attr_dim=%d latent_dim=%d",
			ErrInvalidShape, c.MaxNodeNum, c.AtomAttrDim, c.LatentDim)
	}
	return nil
}

// GraphModel maps padded graphs to one scalar prediction each.
type GraphModel struct {
	config ModelConfig
	graph  []Stage // per-node stages, run in order
	head   []Stage // fully-connected stages on the flattened representation
	logger *zap.Logger
}

// NewGraphModel builds a model with weights drawn from rng.
func NewGraphModel(config ModelConfig, rng *rand.Rand, logger *zap.Logger) *GraphModel {
	if logger == nil {
		logger = zap.NewNop()
	}

	n, d, l := config.MaxNodeNum, config.AtomAttrDim, config.LatentDim
	mode := config.MessagePassing

	return &GraphModel{
		config: config,
		graph: []Stage{
			&MessagePassing{Mode: mode},
			NewLinear(rng, d, hiddenDim),
			&Activation{Func: SigmoidActivation},
			&MessagePassing{Mode: mode},
			NewLinear(rng, hiddenDim, l),
			&Activation{Func: SigmoidActivation},
		},
		head: []Stage{
			NewLinear(rng, n*l+1, 1024),
			&Activation{Func: ReLUActivation},
			NewLinear(rng, 1024, 128),
			&Activation{Func: ReLUActivation},
			NewLinear(rng, 128, 1),
		},
		logger: logger,
	}
}

// Config returns the model dimensions.
func (m *GraphModel) Config() ModelConfig {
	return m.config
}

// forwardCache keeps every stage input so Backward can replay the stage
// lists in reverse.
type forwardCache struct {
	adjacency  *Tensor
	graphIn    []*Tensor
	graphOut   []*Tensor
	headIn     []*Tensor
	headOut    []*Tensor
	graphShape []int // (B, N, L) before flattening
}

// Forward runs inference and returns predictions of shape (B, 1).
func (m *GraphModel) Forward(b *Batch) *Tensor {
	out, _ := m.ForwardWithCache(b)
	return out
}

// ForwardWithCache runs the forward pass and records the activations
// needed for Backward.
func (m *GraphModel) ForwardWithCache(b *Batch) (*Tensor, *forwardCache) {
	cache := &forwardCache{adjacency: b.Adjacency}

	x := b.NodeAttr
	m.logger.Debug("graph input", zap.Ints("shape", x.shape))

	for i, stage := range m.graph {
		cache.graphIn = append(cache.graphIn, x)
		switch s := stage.(type) {
		case *MessagePassing:
			var neighbors *Tensor
			x, neighbors = s.Forward(x, b.Adjacency)
			m.logger.Debug("neighbor message",
				zap.Int("stage", i),
				zap.Ints("shape", neighbors.shape),
				zap.Stringer("mode", s.Mode))
		case *Linear:
			x = s.Forward(x)
		case *Activation:
			x = s.Forward(x)
		default:
			panic(fmt.Sprintf("model: unexpected graph stage %T", stage))
		}
		cache.graphOut = append(cache.graphOut, x)
	}

	// (B, N, L) -> (B, N*L) is the graph representation
	cache.graphShape = x.Shape()
	batch := cache.graphShape[0]
	m.logger.Debug("size of x after GNN", zap.Ints("shape", cache.graphShape))
	x = x.Reshape(batch, x.Size()/batch)

	x = ConcatColumns(x, b.T)

	for _, stage := range m.head {
		cache.headIn = append(cache.headIn, x)
		switch s := stage.(type) {
		case *Linear:
			x = s.Forward(x)
		case *Activation:
			x = s.Forward(x)
		default:
			panic(fmt.Sprintf("model: unexpected head stage %T", stage))
		}
		cache.headOut = append(cache.headOut, x)
	}

	return x, cache
}

// Backward propagates ∂L/∂prediction through the model, accumulating into
// every parameter's gradient buffer.
func (m *GraphModel) Backward(gradOut *Tensor, cache *forwardCache) {
	grad := gradOut
	for i := len(m.head) - 1; i >= 0; i-- {
		switch s := m.head[i].(type) {
		case *Linear:
			grad = s.Backward(cache.headIn[i], grad)
		case *Activation:
			grad = s.Backward(cache.headIn[i], cache.headOut[i], grad)
		}
	}

	flatCols := grad.shape[1] - 1
	grad, _ = ConcatColumnsBackward(grad, flatCols)
	grad = grad.Reshape(cache.graphShape...)

	for i := len(m.graph) - 1; i >= 0; i-- {
		switch s := m.graph[i].(type) {
		case *MessagePassing:
			grad = s.Backward(cache.adjacency, grad)
		case *Linear:
			grad = s.Backward(cache.graphIn[i], grad)
		case *Activation:
			grad = s.Backward(cache.graphIn[i], cache.graphOut[i], grad)
		}
	}
}

// NamedParameter pairs a trainable tensor with its stable checkpoint name.
type NamedParameter struct {
	Name   string
	Tensor *Tensor
}

// NamedParameters returns all trainable parameters in a fixed order with
// names of the form "graph.<stage>.weight" and "head.<stage>.bias".
func (m *GraphModel) NamedParameters() []NamedParameter {
	var params []NamedParameter
	collect := func(prefix string, stages []Stage) {
		for i, stage := range stages {
			if l, ok := stage.(*Linear); ok {
				params = append(params,
					NamedParameter{Name: fmt.Sprintf("%s.%d.weight", prefix, i), Tensor: l.W},
					NamedParameter{Name: fmt.Sprintf("%s.%d.bias", prefix, i), Tensor: l.B},
				)
			}
		}
	}
	collect("graph", m.graph)
	collect("head", m.head)
	return params
}

// Parameters returns all trainable parameters in the model.
func (m *GraphModel) Parameters() []*Tensor {
	named := m.NamedParameters()
	params := make([]*Tensor, len(named))
	for i, p := range named {
		params[i] = p.Tensor
	}
	return params
}

// countParameters counts total parameters in model.
func countParameters(params []*Tensor) int {
	total := 0
	for _, p := range params {
		total += p.Size()
	}
	return total
}
