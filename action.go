package normflow

// Action maps a batch of samples to their per-sample un-normalized negative
// log target density.
type Action interface {
	Eval(y [][]float64) []float64
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc func(y [][]float64) []float64

// Eval calls f.
func (f ActionFunc) Eval(y [][]float64) []float64 {
	return f(y)
}

// QuadraticAction is the free Gaussian action S(y) = 0.5·Coupling·Σ y².
// Zero Coupling means 1.
type QuadraticAction struct {
	Coupling float64 `json:"coupling"`
}

// Eval computes the action per sample.
func (a QuadraticAction) Eval(y [][]float64) []float64 {
	c := a.Coupling
	if c == 0 {
		c = 1
	}
	out := make([]float64, len(y))
	for i, row := range y {
		var sum float64
		for _, v := range row {
			sum += v * v
		}
		out[i] = 0.5 * c * sum
	}
	return out
}
