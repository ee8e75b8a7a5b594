package normflow

import (
	"fmt"
	"math"

	"github.com/sky-flux/normflow/optim"
)

// AffineFlow applies an elementwise affine map y = exp(s)·x + t with
// trainable per-site log-scales s and shifts t. The forward log-Jacobian is
// Σ s, independent of the input. Zero-initialized it is the identity.
type AffineFlow struct {
	dim      int
	logScale []float64
	shift    []float64
}

// NewAffineFlow creates an identity-initialized AffineFlow over dim sites.
func NewAffineFlow(dim int) *AffineFlow {
	return &AffineFlow{
		dim:      dim,
		logScale: make([]float64, dim),
		shift:    make([]float64, dim),
	}
}

// Forward applies y = exp(s)·x + t per site.
func (a *AffineFlow) Forward(x [][]float64) ([][]float64, []float64) {
	sum := 0.0
	for _, s := range a.logScale {
		sum += s
	}
	y := make([][]float64, len(x))
	logJ := make([]float64, len(x))
	for i, row := range x {
		out := make([]float64, len(row))
		for j, v := range row {
			out[j] = math.Exp(a.logScale[j])*v + a.shift[j]
		}
		y[i] = out
		logJ[i] = sum
	}
	return y, logJ
}

// Reverse applies x = (y - t)·exp(-s) per site.
func (a *AffineFlow) Reverse(y [][]float64) ([][]float64, []float64) {
	sum := 0.0
	for _, s := range a.logScale {
		sum += s
	}
	x := make([][]float64, len(y))
	minusLogJ := make([]float64, len(y))
	for i, row := range y {
		out := make([]float64, len(row))
		for j, v := range row {
			out[j] = (v - a.shift[j]) * math.Exp(-a.logScale[j])
		}
		x[i] = out
		minusLogJ[i] = -sum
	}
	return x, minusLogJ
}

// Parameters returns [logScale..., shift...].
func (a *AffineFlow) Parameters() []float64 {
	out := make([]float64, 0, 2*a.dim)
	out = append(out, a.logScale...)
	return append(out, a.shift...)
}

// SetParameters restores [logScale..., shift...].
func (a *AffineFlow) SetParameters(params []float64) error {
	if len(params) != 2*a.dim {
		return fmt.Errorf("%w: affine flow has %d parameters, got %d", ErrParameterCount, 2*a.dim, len(params))
	}
	copy(a.logScale, params[:a.dim])
	copy(a.shift, params[a.dim:])
	return nil
}

// ParameterGroups separates log-scales from shifts; shifts act like biases
// and carry no weight decay.
func (a *AffineFlow) ParameterGroups() []optim.ParamGroup {
	scales := make([]int, a.dim)
	shifts := make([]int, a.dim)
	for i := 0; i < a.dim; i++ {
		scales[i] = i
		shifts[i] = a.dim + i
	}
	return []optim.ParamGroup{
		{Indices: scales},
		{Indices: shifts, Hyperparams: optim.Hyperparams{"weight_decay": 0}},
	}
}
