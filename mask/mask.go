package mask

import (
	"errors"
	"fmt"
)

// ErrInvalidMask is returned for out-of-range shapes, parities, or axes.
var ErrInvalidMask = errors.New("mask: invalid mask configuration")

// Mask partitions flattened lattice data into two complementary channels.
type Mask interface {
	// Split partitions x into channel 0 and channel 1. Both returned vectors
	// have the full length of x, with the other channel's sites zeroed.
	Split(x []float64) (ch0, ch1 []float64)

	// Cat reassembles the two channels into a single vector.
	Cat(ch0, ch1 []float64) []float64

	// Purify zeroes every site of x that does not belong to the given
	// channel (0 or 1).
	Purify(x []float64, channel int) []float64
}

// binary applies a fixed pattern of 0s and 1s; 1 marks channel 0.
type binary struct {
	shape   []int
	pattern []float64
}

func (b *binary) Split(x []float64) ([]float64, []float64) {
	ch0 := make([]float64, len(x))
	ch1 := make([]float64, len(x))
	for i, v := range x {
		ch0[i] = b.pattern[i] * v
		ch1[i] = (1 - b.pattern[i]) * v
	}
	return ch0, ch1
}

func (b *binary) Cat(ch0, ch1 []float64) []float64 {
	out := make([]float64, len(ch0))
	for i := range ch0 {
		out[i] = ch0[i] + ch1[i]
	}
	return out
}

func (b *binary) Purify(x []float64, channel int) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if channel == 0 {
			out[i] = b.pattern[i] * v
		} else {
			out[i] = (1 - b.pattern[i]) * v
		}
	}
	return out
}

// Pattern returns a copy of the underlying 0/1 pattern; 1 marks channel 0.
func (b *binary) Pattern() []float64 {
	out := make([]float64, len(b.pattern))
	copy(out, b.pattern)
	return out
}

// EvenOddConfig configures an even-odd (checkerboard) mask.
type EvenOddConfig struct {
	Shape  []int `json:"shape"`
	Parity int   `json:"parity"` // 0 or 1

	// ExcludeAxis, when set, removes that axis from the parity sum so the
	// mask is constant along it. nil means no axis is excluded.
	ExcludeAxis *int `json:"exclude_axis"`
}

// NewEvenOdd creates a checkerboard mask over the given shape: site index
// (i0, i1, ...) belongs to channel 0 iff (1 - parity + Σ i_mu) is odd, with
// the excluded axis (if any) dropped from the sum.
func NewEvenOdd(cfg EvenOddConfig) (Mask, error) {
	if err := checkShape(cfg.Shape); err != nil {
		return nil, err
	}
	if cfg.Parity != 0 && cfg.Parity != 1 {
		return nil, fmt.Errorf("%w: parity %d must be 0 or 1", ErrInvalidMask, cfg.Parity)
	}
	if cfg.ExcludeAxis != nil && (*cfg.ExcludeAxis < 0 || *cfg.ExcludeAxis >= len(cfg.Shape)) {
		return nil, fmt.Errorf("%w: exclude axis %d out of range for %d-dim shape",
			ErrInvalidMask, *cfg.ExcludeAxis, len(cfg.Shape))
	}

	pattern := make([]float64, size(cfg.Shape))
	idx := make([]int, len(cfg.Shape))
	for i := range pattern {
		sum := 0
		for mu, v := range idx {
			if cfg.ExcludeAxis != nil && mu == *cfg.ExcludeAxis {
				continue
			}
			sum += v
		}
		pattern[i] = float64((1 - cfg.Parity + sum) % 2)
		advance(idx, cfg.Shape)
	}
	return &binary{shape: append([]int(nil), cfg.Shape...), pattern: pattern}, nil
}

// AlongAxisConfig configures a mask that alternates only along one axis.
type AlongAxisConfig struct {
	Shape  []int `json:"shape"`
	Parity int   `json:"parity"` // 0 or 1
	Axis   int   `json:"axis"`
}

// NewAlongAxis creates a mask alternating only in the given axis: site index
// (i0, i1, ...) belongs to channel 0 iff (1 - parity + i_axis) is odd.
func NewAlongAxis(cfg AlongAxisConfig) (Mask, error) {
	if err := checkShape(cfg.Shape); err != nil {
		return nil, err
	}
	if cfg.Parity != 0 && cfg.Parity != 1 {
		return nil, fmt.Errorf("%w: parity %d must be 0 or 1", ErrInvalidMask, cfg.Parity)
	}
	if cfg.Axis < 0 || cfg.Axis >= len(cfg.Shape) {
		return nil, fmt.Errorf("%w: axis %d out of range for %d-dim shape",
			ErrInvalidMask, cfg.Axis, len(cfg.Shape))
	}

	pattern := make([]float64, size(cfg.Shape))
	idx := make([]int, len(cfg.Shape))
	for i := range pattern {
		pattern[i] = float64((1 - cfg.Parity + idx[cfg.Axis]) % 2)
		advance(idx, cfg.Shape)
	}
	return &binary{shape: append([]int(nil), cfg.Shape...), pattern: pattern}, nil
}

func checkShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("%w: empty shape", ErrInvalidMask)
	}
	for _, l := range shape {
		if l <= 0 {
			return fmt.Errorf("%w: shape %v has non-positive extent", ErrInvalidMask, shape)
		}
	}
	return nil
}

func size(shape []int) int {
	n := 1
	for _, l := range shape {
		n *= l
	}
	return n
}

// advance increments a row-major multi-index, wrapping at each extent.
func advance(idx, shape []int) {
	for mu := len(idx) - 1; mu >= 0; mu-- {
		idx[mu]++
		if idx[mu] < shape[mu] {
			return
		}
		idx[mu] = 0
	}
}
