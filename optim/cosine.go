package optim

import "math"

// CosineAnnealing anneals an optimizer's learning rate over tMax steps:
//
//	lr_t = 0.5 * lr_max * (1 + cos(π * t / T_max))
type CosineAnnealing struct {
	opt   Optimizer
	lrMax float64
	tMax  int
	t     int
}

// NewCosineAnnealing creates a cosine annealing scheduler driving opt from
// lrMax down to zero over tMax steps.
func NewCosineAnnealing(opt Optimizer, lrMax float64, tMax int) *CosineAnnealing {
	return &CosineAnnealing{opt: opt, lrMax: lrMax, tMax: tMax}
}

// LR returns the schedule's current learning rate.
func (ca *CosineAnnealing) LR() float64 {
	return 0.5 * ca.lrMax * (1 + math.Cos(math.Pi*float64(ca.t)/float64(ca.tMax)))
}

// Step advances the schedule by one step and pushes the new rate into the
// optimizer.
func (ca *CosineAnnealing) Step() {
	ca.t++
	ca.opt.SetLR(ca.LR())
}
