package normflow

import (
	"fmt"

	"github.com/sky-flux/normflow/mask"
	"github.com/sky-flux/normflow/optim"
)

// AdditiveCoupling shifts the channel-0 ("active") sites of each sample by
// an amount computed from the channel-1 ("frozen") sites, leaving the frozen
// sites untouched. Additive updates have unit Jacobian, so logJ is zero.
//
// The shift at active site j is b[j] + w·mean(frozen channel), with the
// per-site biases b and the coupling weight w trainable. Zero-initialized it
// is the identity.
type AdditiveCoupling struct {
	dim    int
	mask   mask.Mask
	bias   []float64
	weight float64
}

// NewAdditiveCoupling creates an identity-initialized coupling over dim
// sites, partitioned by m.
func NewAdditiveCoupling(dim int, m mask.Mask) *AdditiveCoupling {
	return &AdditiveCoupling{dim: dim, mask: m, bias: make([]float64, dim)}
}

// shiftFor computes the active-channel shift from the purified frozen
// channel of one sample.
func (c *AdditiveCoupling) shiftFor(frozen []float64) []float64 {
	frozen = c.mask.Purify(frozen, 1)
	var mean float64
	for _, v := range frozen {
		mean += v
	}
	mean /= float64(len(frozen))

	shift := make([]float64, len(frozen))
	for j := range shift {
		shift[j] = c.bias[j] + c.weight*mean
	}
	return c.mask.Purify(shift, 0)
}

// Forward adds the frozen-channel shift to the active channel.
func (c *AdditiveCoupling) Forward(x [][]float64) ([][]float64, []float64) {
	y := make([][]float64, len(x))
	for i, row := range x {
		active, frozen := c.mask.Split(row)
		shift := c.shiftFor(frozen)
		for j := range active {
			active[j] += shift[j]
		}
		y[i] = c.mask.Cat(c.mask.Purify(active, 0), frozen)
	}
	return y, make([]float64, len(x))
}

// Reverse subtracts the frozen-channel shift from the active channel. The
// frozen channel is unchanged by Forward, so the shift is recomputed exactly.
func (c *AdditiveCoupling) Reverse(y [][]float64) ([][]float64, []float64) {
	x := make([][]float64, len(y))
	for i, row := range y {
		active, frozen := c.mask.Split(row)
		shift := c.shiftFor(frozen)
		for j := range active {
			active[j] -= shift[j]
		}
		x[i] = c.mask.Cat(c.mask.Purify(active, 0), frozen)
	}
	return x, make([]float64, len(y))
}

// Parameters returns [bias..., weight].
func (c *AdditiveCoupling) Parameters() []float64 {
	out := make([]float64, 0, c.dim+1)
	out = append(out, c.bias...)
	return append(out, c.weight)
}

// SetParameters restores [bias..., weight].
func (c *AdditiveCoupling) SetParameters(params []float64) error {
	if len(params) != c.dim+1 {
		return fmt.Errorf("%w: additive coupling has %d parameters, got %d", ErrParameterCount, c.dim+1, len(params))
	}
	copy(c.bias, params[:c.dim])
	c.weight = params[c.dim]
	return nil
}

// ParameterGroups separates the per-site biases from the coupling weight;
// biases carry no weight decay.
func (c *AdditiveCoupling) ParameterGroups() []optim.ParamGroup {
	biases := make([]int, c.dim)
	for i := range biases {
		biases[i] = i
	}
	return []optim.ParamGroup{
		{Indices: biases, Hyperparams: optim.Hyperparams{"weight_decay": 0}},
		{Indices: []int{c.dim}},
	}
}
