package normflow

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"
)

// AcceptRateEstimator estimates the Metropolis acceptance rate implied by a
// batch of log importance-weight ratios logqp = logq - logp.
type AcceptRateEstimator interface {
	EstimateAcceptRate(logqp []float64) ValErr
}

// MCMCSampler applies an independence-Metropolis accept/reject correction to
// Posterior proposals, turning them into asymptotically exact samples from
// the action's distribution.
type MCMCSampler struct {
	model *Model
	rng   *rand.Rand
}

func newMCMCSampler(m *Model) *MCMCSampler {
	return &MCMCSampler{
		model: m,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// EstimateAcceptRate returns the mean and standard deviation of the
// acceptance probabilities min(1, exp(logqp_current - logqp_proposed)) an
// independence-Metropolis chain sees when the batch is proposed in order.
func (s *MCMCSampler) EstimateAcceptRate(logqp []float64) ValErr {
	if len(logqp) < 2 {
		return ValErr{Mean: 1}
	}

	cur := logqp[0]
	probs := make([]float64, 0, len(logqp)-1)
	for _, next := range logqp[1:] {
		a := math.Exp(cur - next)
		if a > 1 {
			a = 1
		}
		probs = append(probs, a)
		if s.rng.Float64() < a {
			cur = next
		}
	}

	v := ValErr{Mean: stat.Mean(probs, nil)}
	if len(probs) >= 2 {
		v.Err = stat.StdDev(probs, nil)
	}
	return v
}

// Sample draws batchSize proposals from the Posterior and runs the
// accept/reject chain over them, returning the chain states and the
// realized acceptance rate.
func (s *MCMCSampler) Sample(batchSize int) ([][]float64, float64) {
	y, logq, logp := s.model.Posterior.SampleQP(batchSize)
	if batchSize < 2 {
		return y, 0
	}

	out := make([][]float64, batchSize)
	out[0] = y[0]
	cur := logq[0] - logp[0]
	accepted := 0
	for i := 1; i < batchSize; i++ {
		next := logq[i] - logp[i]
		a := math.Exp(cur - next)
		if a > 1 {
			a = 1
		}
		if s.rng.Float64() < a {
			out[i] = y[i]
			cur = next
			accepted++
		} else {
			out[i] = out[i-1]
		}
	}
	return out, float64(accepted) / float64(batchSize-1)
}
