package optim

import "math"

// Hyperparameter defaults shared by AdamW constructors.
const (
	DefaultLR          = 0.001
	DefaultWeightDecay = 0.01
	defaultBeta1       = 0.9
	defaultBeta2       = 0.999
	defaultEps         = 1e-8
)

// AdamW implements Adam with bias correction and decoupled weight decay.
//
// Update rule per parameter index i:
//
//	w[i] = w[i] - lr·wd·w[i]                 (decoupled decay)
//	m[i] = β1·m[i] + (1-β1)·g[i]
//	v[i] = β2·v[i] + (1-β2)·g[i]²
//	m̂[i] = m[i] / (1 - β1^t)
//	v̂[i] = v[i] / (1 - β2^t)
//	w[i] = w[i] - lr · m̂[i] / (√v̂[i] + ε)
//
// Group-level hyperparameters override the optimizer-wide values for the
// group's indices; a group's "lr" is kept as a fixed ratio to the base rate
// so SetLR rescales every group proportionally.
type AdamW struct {
	base   float64 // current base learning rate
	groups []adamGroup
	m, v   []float64
	step   int
}

type adamGroup struct {
	indices      []int
	lrRatio      float64 // group lr / base lr
	weightDecay  float64
	beta1, beta2 float64
	eps          float64
}

// NewAdamW creates an AdamW optimizer over the given parameter groups.
// Empty groups mean the whole vector, resolved lazily at the first Update.
// Missing hyperparameter keys receive the standard defaults: lr=0.001,
// weight_decay=0.01, β1=0.9, β2=0.999, ε=1e-8.
func NewAdamW(groups []ParamGroup, hp Hyperparams) *AdamW {
	base := hp.Get("lr", DefaultLR)
	a := &AdamW{base: base}
	for _, g := range groups {
		merged := hp.Merge(g.Hyperparams)
		a.groups = append(a.groups, adamGroup{
			indices:     append([]int(nil), g.Indices...),
			lrRatio:     merged.Get("lr", DefaultLR) / base,
			weightDecay: merged.Get("weight_decay", DefaultWeightDecay),
			beta1:       merged.Get("beta1", defaultBeta1),
			beta2:       merged.Get("beta2", defaultBeta2),
			eps:         merged.Get("eps", defaultEps),
		})
	}
	return a
}

// Update applies one AdamW step and returns the updated parameters.
// The inputs are not mutated.
func (a *AdamW) Update(params, grads []float64) []float64 {
	out := append([]float64(nil), params...)
	if len(out) == 0 {
		return out
	}

	if a.groups == nil {
		a.groups = []adamGroup{{
			indices:     WholeVector(len(params))[0].Indices,
			lrRatio:     1,
			weightDecay: DefaultWeightDecay,
			beta1:       defaultBeta1,
			beta2:       defaultBeta2,
			eps:         defaultEps,
		}}
	}
	if a.m == nil {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
	}

	a.step++
	for _, g := range a.groups {
		lr := a.base * g.lrRatio
		for _, i := range g.indices {
			out[i] -= lr * g.weightDecay * out[i]

			grad := grads[i]
			a.m[i] = g.beta1*a.m[i] + (1-g.beta1)*grad
			a.v[i] = g.beta2*a.v[i] + (1-g.beta2)*grad*grad

			mHat := a.m[i] / (1 - math.Pow(g.beta1, float64(a.step)))
			vHat := a.v[i] / (1 - math.Pow(g.beta2, float64(a.step)))

			out[i] -= lr * mHat / (math.Sqrt(vHat) + g.eps)
		}
	}
	return out
}

// SetLR updates the base learning rate (used by schedulers).
func (a *AdamW) SetLR(lr float64) {
	a.base = lr
}

// LR returns the current base learning rate.
func (a *AdamW) LR() float64 {
	return a.base
}
