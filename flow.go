package normflow

import (
	"fmt"

	"github.com/sky-flux/normflow/optim"
)

// FlowNetwork is an invertible, differentiable, parameterized transformation
// that tracks the log-Jacobian of its forward application.
//
// Invariant: Reverse inverts Forward up to floating-point round-off, and the
// forward logJ plus the reverse minusLogJ of the same pair sums to
// (approximately) zero. CheckReverse probes this.
type FlowNetwork interface {
	// Forward transforms a batch, returning the transformed batch and the
	// per-sample log|det J| of the transformation.
	Forward(x [][]float64) (y [][]float64, logJ []float64)

	// Reverse inverts Forward, returning the recovered batch and the
	// per-sample negated forward log|det J|.
	Reverse(y [][]float64) (x [][]float64, minusLogJ []float64)

	// Parameters returns a snapshot of the trainable parameters as a flat
	// vector. Flows without trainable parameters return an empty vector.
	Parameters() []float64

	// SetParameters restores the trainable parameters from a flat vector.
	// Returns ErrParameterCount when the length does not match.
	SetParameters(params []float64) error
}

// GroupedFlowNetwork is optionally implemented by flows that partition their
// parameters into groups with differing optimizer hyperparameters. The
// Fitter prefers the grouped view when a flow provides one.
type GroupedFlowNetwork interface {
	FlowNetwork
	ParameterGroups() []optim.ParamGroup
}

// IdentityFlow maps every input to itself with zero log-Jacobian. It has no
// trainable parameters.
type IdentityFlow struct{}

// Forward returns x unchanged with zero log-Jacobians.
func (IdentityFlow) Forward(x [][]float64) ([][]float64, []float64) {
	return x, make([]float64, len(x))
}

// Reverse returns y unchanged with zero log-Jacobians.
func (IdentityFlow) Reverse(y [][]float64) ([][]float64, []float64) {
	return y, make([]float64, len(y))
}

// Parameters returns an empty vector.
func (IdentityFlow) Parameters() []float64 {
	return nil
}

// SetParameters accepts only an empty vector.
func (IdentityFlow) SetParameters(params []float64) error {
	if len(params) != 0 {
		return fmt.Errorf("%w: identity flow has no parameters, got %d", ErrParameterCount, len(params))
	}
	return nil
}

// ComposedFlow applies a sequence of flows in order, accumulating their
// log-Jacobians. Its flat parameter vector is the concatenation of the
// sub-flows' vectors.
type ComposedFlow struct {
	flows []FlowNetwork
}

// NewComposedFlow composes the given flows; Forward applies them first to
// last, Reverse last to first.
func NewComposedFlow(flows ...FlowNetwork) *ComposedFlow {
	return &ComposedFlow{flows: flows}
}

// Forward applies the flows in order.
func (c *ComposedFlow) Forward(x [][]float64) ([][]float64, []float64) {
	logJ := make([]float64, len(x))
	for _, f := range c.flows {
		var lj []float64
		x, lj = f.Forward(x)
		for i := range logJ {
			logJ[i] += lj[i]
		}
	}
	return x, logJ
}

// Reverse applies the flows' reverses in reverse order.
func (c *ComposedFlow) Reverse(y [][]float64) ([][]float64, []float64) {
	minusLogJ := make([]float64, len(y))
	for k := len(c.flows) - 1; k >= 0; k-- {
		var mlj []float64
		y, mlj = c.flows[k].Reverse(y)
		for i := range minusLogJ {
			minusLogJ[i] += mlj[i]
		}
	}
	return y, minusLogJ
}

// Parameters concatenates the sub-flows' parameter vectors.
func (c *ComposedFlow) Parameters() []float64 {
	var out []float64
	for _, f := range c.flows {
		out = append(out, f.Parameters()...)
	}
	return out
}

// SetParameters splits the flat vector across the sub-flows by their current
// parameter counts.
func (c *ComposedFlow) SetParameters(params []float64) error {
	want := len(c.Parameters())
	if len(params) != want {
		return fmt.Errorf("%w: composed flow has %d parameters, got %d", ErrParameterCount, want, len(params))
	}
	off := 0
	for _, f := range c.flows {
		n := len(f.Parameters())
		if err := f.SetParameters(params[off : off+n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// ParameterGroups concatenates the sub-flows' groups, offsetting indices
// into the composed flat vector. Ungrouped sub-flows contribute one group
// covering their whole vector.
func (c *ComposedFlow) ParameterGroups() []optim.ParamGroup {
	var groups []optim.ParamGroup
	off := 0
	for _, f := range c.flows {
		n := len(f.Parameters())
		if g, ok := f.(GroupedFlowNetwork); ok {
			for _, sub := range g.ParameterGroups() {
				indices := make([]int, len(sub.Indices))
				for i, idx := range sub.Indices {
					indices[i] = off + idx
				}
				groups = append(groups, optim.ParamGroup{Indices: indices, Hyperparams: sub.Hyperparams})
			}
		} else if n > 0 {
			indices := make([]int, n)
			for i := range indices {
				indices[i] = off + i
			}
			groups = append(groups, optim.ParamGroup{Indices: indices})
		}
		off += n
	}
	return groups
}
