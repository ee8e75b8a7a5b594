package normflow

// PreprocessFunc adjusts prior draws and their log-densities before they are
// pushed through the flow. It must return a pair of the same shapes.
type PreprocessFunc func(x [][]float64, logr []float64) ([][]float64, []float64)

// Posterior draws samples directly from the model's induced distribution q
// and computes their log-densities. No accept/reject step is applied; use
// Model.MCMC for corrected sampling.
type Posterior struct {
	model *Model
}

// Sample draws batchSize samples.
func (p *Posterior) Sample(batchSize int, preprocess ...PreprocessFunc) [][]float64 {
	y, _ := p.SampleQ(batchSize, preprocess...)
	return y
}

// SampleQ draws batchSize samples along with their log-densities logq under
// the model: prior draws (x, logr) are pushed through the flow to (y, logJ)
// and logq = logr - logJ. Optional preprocess hooks are applied to the prior
// draws, in order, before flowing them.
func (p *Posterior) SampleQ(batchSize int, preprocess ...PreprocessFunc) ([][]float64, []float64) {
	x, logr := p.model.Prior.SampleWithLogProb(batchSize)
	for _, fn := range preprocess {
		x, logr = fn(x, logr)
	}
	y, logJ := p.model.Flow.Forward(x)
	logq := make([]float64, len(logr))
	for i := range logq {
		logq[i] = logr[i] - logJ[i]
	}
	return y, logq
}

// SampleQP extends SampleQ with the un-normalized target log-density
// logp = -Action(y).
func (p *Posterior) SampleQP(batchSize int, preprocess ...PreprocessFunc) ([][]float64, []float64, []float64) {
	y, logq := p.SampleQ(batchSize, preprocess...)
	action := p.model.Action.Eval(y)
	logp := make([]float64, len(action))
	for i, v := range action {
		logp[i] = -v
	}
	return y, logq, logp
}

// LogProb computes logq for the given samples via the exact reverse map:
// y is pulled back through the flow to (x, minusLogJ) and
// logq = Prior.LogProb(x) + minusLogJ. For any y produced by SampleQ this
// matches the returned logq up to floating-point error.
func (p *Posterior) LogProb(y [][]float64) []float64 {
	x, minusLogJ := p.model.Flow.Reverse(y)
	logr := p.model.Prior.LogProb(x)
	logq := make([]float64, len(logr))
	for i := range logq {
		logq[i] = logr[i] + minusLogJ[i]
	}
	return logq
}
