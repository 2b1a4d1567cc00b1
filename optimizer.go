package main

import (
	"fmt"
	"math"
)

// Optimizer interface for different optimization algorithms.
type Optimizer interface {
	// Step performs a single optimization step.
	// Updates parameters using their gradients.
	Step(params []*Tensor, lr float64)

	// ZeroGrad clears all gradients.
	ZeroGrad(params []*Tensor)
}

// SGDOptimizer implements Stochastic Gradient Descent.
type SGDOptimizer struct {
	weightDecay float64
}

// NewSGDOptimizer creates an SGD optimizer.
func NewSGDOptimizer(weightDecay float64) *SGDOptimizer {
	return &SGDOptimizer{weightDecay: weightDecay}
}

// Step updates parameters using SGD: param -= lr * (grad + weightDecay * param).
func (opt *SGDOptimizer) Step(params []*Tensor, lr float64) {
	for _, p := range params {
		for i := range p.data {
			grad := p.grad[i] + opt.weightDecay*p.data[i]
			p.data[i] -= lr * grad
		}
	}
}

// ZeroGrad clears gradients.
func (opt *SGDOptimizer) ZeroGrad(params []*Tensor) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// AdamOptimizer implements Adam optimization algorithm.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1 - beta1) * grad
//	v_t = beta2 * v_{t-1} + (1 - beta2) * grad²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param -= lr * m_hat / (sqrt(v_hat) + epsilon)
type AdamOptimizer struct {
	beta1       float64
	beta2       float64
	epsilon     float64
	weightDecay float64

	// State (one per parameter)
	m []*Tensor // First moment (momentum)
	v []*Tensor // Second moment (variance)
	t int       // Time step (for bias correction)
}

// NewAdamOptimizer creates an Adam optimizer.
func NewAdamOptimizer(params []*Tensor, beta1, beta2, epsilon, weightDecay float64) *AdamOptimizer {
	m := make([]*Tensor, len(params))
	v := make([]*Tensor, len(params))
	for i, p := range params {
		m[i] = NewTensor(p.shape...)
		v[i] = NewTensor(p.shape...)
	}

	return &AdamOptimizer{
		beta1:       beta1,
		beta2:       beta2,
		epsilon:     epsilon,
		weightDecay: weightDecay,
		m:           m,
		v:           v,
	}
}

// NewDefaultAdam creates Adam with the usual betas (0.9, 0.999), epsilon
// 1e-8 and no weight decay.
func NewDefaultAdam(params []*Tensor) *AdamOptimizer {
	return NewAdamOptimizer(params, 0.9, 0.999, 1e-8, 0)
}

// NewOptimizer builds the optimizer named by name, "adam" or "sgd", for
// params. An empty name selects Adam.
func NewOptimizer(name string, params []*Tensor, weightDecay float64) (Optimizer, error) {
	switch name {
	case "adam", "":
		adam := NewDefaultAdam(params)
		adam.weightDecay = weightDecay
		return adam, nil
	case "sgd":
		return NewSGDOptimizer(weightDecay), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q (want adam or sgd)", name)
	}
}

// Step performs Adam update.
func (opt *AdamOptimizer) Step(params []*Tensor, lr float64) {
	if len(params) != len(opt.m) {
		panic(fmt.Sprintf("adam: got %d parameters, optimizer tracks %d", len(params), len(opt.m)))
	}
	opt.t++

	bias1 := 1.0 - math.Pow(opt.beta1, float64(opt.t))
	bias2 := 1.0 - math.Pow(opt.beta2, float64(opt.t))

	for i, p := range params {
		m, v := opt.m[i].data, opt.v[i].data
		for j := range p.data {
			grad := p.grad[j] + opt.weightDecay*p.data[j]

			m[j] = opt.beta1*m[j] + (1.0-opt.beta1)*grad
			v[j] = opt.beta2*v[j] + (1.0-opt.beta2)*grad*grad

			mHat := m[j] / bias1
			vHat := v[j] / bias2

			p.data[j] -= lr * mHat / (math.Sqrt(vHat) + opt.epsilon)
		}
	}
}

// ZeroGrad clears gradients.
func (opt *AdamOptimizer) ZeroGrad(params []*Tensor) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// LRSchedule names a learning-rate schedule.
type LRSchedule int

const (
	// ConstantLR keeps the base learning rate for every step.
	ConstantLR LRSchedule = iota
	// CosineLR decays from the base rate to the minimum over all steps.
	CosineLR
)

// ParseLRSchedule maps a flag value to a schedule.
func ParseLRSchedule(s string) (LRSchedule, error) {
	switch s {
	case "constant", "":
		return ConstantLR, nil
	case "cosine":
		return CosineLR, nil
	default:
		return 0, fmt.Errorf("unknown learning-rate schedule %q (want constant or cosine)", s)
	}
}

func (s LRSchedule) String() string {
	if s == CosineLR {
		return "cosine"
	}
	return "constant"
}

// LRScheduler implements learning rate scheduling.
type LRScheduler struct {
	schedule   LRSchedule
	baseLR     float64
	minLR      float64
	totalSteps int
	step       int
}

// NewLRScheduler creates a learning rate scheduler over totalSteps steps.
func NewLRScheduler(schedule LRSchedule, baseLR, minLR float64, totalSteps int) *LRScheduler {
	return &LRScheduler{
		schedule:   schedule,
		baseLR:     baseLR,
		minLR:      minLR,
		totalSteps: totalSteps,
	}
}

// GetLR returns the learning rate for the next step and advances the
// schedule.
func (sched *LRScheduler) GetLR() float64 {
	step := sched.step
	sched.step++

	if sched.schedule == ConstantLR || sched.totalSteps <= 1 {
		return sched.baseLR
	}
	if step >= sched.totalSteps {
		return sched.minLR
	}

	progress := float64(step) / float64(sched.totalSteps-1)
	cosine := 0.5 * (1.0 + math.Cos(math.Pi*progress))
	return sched.minLR + (sched.baseLR-sched.minLR)*cosine
}
