package optim

// Hyperparams maps optimizer construction keywords to values.
// Recognized keys: "lr", "weight_decay", "beta1", "beta2", "eps".
// Unrecognized keys are ignored, so custom optimizers may define their own.
type Hyperparams map[string]float64

// Merge returns a new Hyperparams with overrides applied key-wise on top of
// h. Keys absent from overrides keep their values from h; neither input is
// mutated.
func (h Hyperparams) Merge(overrides Hyperparams) Hyperparams {
	out := make(Hyperparams, len(h)+len(overrides))
	for k, v := range h {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Get returns the value for key, or fallback when the key is absent.
func (h Hyperparams) Get(key string, fallback float64) float64 {
	if v, ok := h[key]; ok {
		return v
	}
	return fallback
}

// ParamGroup selects a subset of a flat parameter vector. Group-level
// hyperparameters override the optimizer-wide values for those indices.
type ParamGroup struct {
	Indices     []int
	Hyperparams Hyperparams
}

// WholeVector returns a single group covering all n parameters.
func WholeVector(n int) []ParamGroup {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return []ParamGroup{{Indices: indices}}
}

// Optimizer updates a flat parameter vector from a gradient of the same
// length. Update returns the new vector without mutating its inputs.
type Optimizer interface {
	Update(params, grads []float64) []float64
	SetLR(lr float64)
}

// Scheduler adjusts an Optimizer's learning rate, stepped once per epoch.
type Scheduler interface {
	Step()
}
