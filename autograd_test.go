package main

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func TestMSELoss(t *testing.T) {
	pred, _ := NewTensorFrom([]float64{1, 2, 3}, 3, 1)
	target, _ := NewTensorFrom([]float64{1, 0, 6}, 3, 1)

	assert.InDelta(t, (0+4+9)/3.0, MSELoss(pred, target), 1e-12)

	grad := MSELossBackward(pred, target)
	assert.InDeltaSlice(t, []float64{0, 4.0 / 3, -6.0 / 3}, grad.Data(), 1e-12)
}

func TestSigmoidBackward(t *testing.T) {
	x, _ := NewTensorFrom([]float64{-1, 0, 2}, 3)
	y := Sigmoid(x)
	ones, _ := NewTensorFrom([]float64{1, 1, 1}, 3)

	got := SigmoidBackward(y, ones)
	for i, v := range x.Data() {
		want := fd.Derivative(func(z float64) float64 { return 1 / (1 + math.Exp(-z)) }, v, nil)
		assert.InDelta(t, want, got.At(i), 1e-6)
	}
}

func TestLinearBackward(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	x := NewTensorUniform(rng, 1, 4, 3)
	w := NewTensorUniform(rng, 1, 3, 2)
	gradY := NewTensorUniform(rng, 1, 4, 2)

	gradX, gradW, gradB := LinearBackward(x, w, gradY)
	assert.Equal(t, []int{4, 3}, gradX.Shape())
	assert.Equal(t, []int{3, 2}, gradW.Shape())
	assert.Equal(t, []int{2}, gradB.Shape())

	// loss = Σ gradY ⊙ (X W), so ∂loss/∂W is exactly gradW.
	loss := func(wv []float64) float64 {
		wt, _ := NewTensorFrom(wv, 3, 2)
		y := MatMul(x, wt)
		total := 0.0
		for i := range y.data {
			total += y.data[i] * gradY.data[i]
		}
		return total
	}
	numeric := fd.Gradient(nil, loss, append([]float64(nil), w.data...), nil)
	assert.InDeltaSlice(t, numeric, gradW.Data(), 1e-6)
}

// TestModelGradientsMatchFiniteDifferences checks the analytic gradient of
// every parameter tensor of a small model against central differences.
func TestModelGradientsMatchFiniteDifferences(t *testing.T) {
	for _, mode := range []MessagePassingMode{PassThrough, Aggregate} {
		t.Run(mode.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(21))
			model := NewGraphModel(smallModelConfig(mode), rng, nil)

			ds := syntheticDataset(rng, 2, 3, 2)
			_, err := NormalizeLabels(ds)
			require.NoError(t, err)
			batch := ds.Gather([]int{0, 1})

			params := model.Parameters()
			for _, p := range params {
				p.ZeroGrad()
			}
			pred, cache := model.ForwardWithCache(batch)
			model.Backward(MSELossBackward(pred, batch.Label), cache)

			for _, np := range model.NamedParameters() {
				p := np.Tensor
				if p.Size() > 200 {
					// The wide head layers are covered by their neighbours;
					// differencing 3K+ weights only slows the test down.
					continue
				}
				t.Run(np.Name, func(t *testing.T) {
					orig := append([]float64(nil), p.data...)
					loss := func(v []float64) float64 {
						copy(p.data, v)
						return MSELoss(model.Forward(batch), batch.Label)
					}
					numeric := fd.Gradient(nil, loss, append([]float64(nil), orig...), &fd.Settings{
						Formula: fd.Central,
						Step:    1e-6,
					})
					copy(p.data, orig)

					for i := range numeric {
						assert.InDelta(t, numeric[i], p.grad[i], 1e-5+1e-3*math.Abs(numeric[i]),
							fmt.Sprintf("%s[%d]", np.Name, i))
					}
				})
			}
		})
	}
}
