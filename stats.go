package normflow

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LossFunc scores a batch of proposal/target log-densities; lower is better.
// All statistics built on log-sum-exp use gonum's max-subtracting form, so
// they stay finite for large batches and heavy-tailed weight ratios.
type LossFunc func(logq, logp []float64) float64

// ValErr is a value together with its uncertainty.
type ValErr struct {
	Mean float64 `json:"mean"`
	Err  float64 `json:"err"`
}

// String formats the value as "mean ± err".
func (v ValErr) String() string {
	return fmt.Sprintf("%.4g ± %.2g", v.Mean, v.Err)
}

// CalcKLMean estimates the reverse Kullback-Leibler divergence
// mean(logq - logp) from samples drawn from q. The default training loss.
func CalcKLMean(logq, logp []float64) float64 {
	return stat.Mean(diff(logq, logp), nil)
}

// CalcKLVar returns the sample variance of logq - logp. Zero exactly when
// the difference is constant across the batch.
func CalcKLVar(logq, logp []float64) float64 {
	return stat.Variance(diff(logq, logp), nil)
}

// CalcCorrCoef returns the Pearson correlation coefficient of logq and logp.
func CalcCorrCoef(logq, logp []float64) float64 {
	return stat.Correlation(logq, logp, nil)
}

// CalcDirectKLMean estimates the forward KL divergence: p is normalized via
// log-sum-exp of (logp - logq), then the (p/q)-weighted mean of the
// normalized (logp - logq) is taken.
func CalcDirectKLMean(logq, logp []float64) float64 {
	logpq := diff(logp, logq)
	logz := floats.LogSumExp(logpq) - math.Log(float64(len(logpq)))
	var sum float64
	for _, v := range logpq {
		v -= logz
		sum += math.Exp(v) * v
	}
	return sum / float64(len(logpq))
}

// CalcMinusLogZ returns the negated log-partition-function estimate
// -[logsumexp(logp - logq) - log N].
func CalcMinusLogZ(logq, logp []float64) float64 {
	return -(floats.LogSumExp(diff(logp, logq)) - math.Log(float64(len(logq))))
}

// CalcESS returns the normalized effective sample size in (0, 1]:
//
//	ESS = exp(2·logsumexp(-Δ) - logsumexp(-2Δ)) / N,  Δ = logq - logp
//
// ESS is 1 exactly when Δ is constant across the batch.
func CalcESS(logq, logp []float64) float64 {
	return essFromLogQP(diff(logq, logp))
}

// essFromLogQP computes ESS from already-differenced log(q/p) values.
// The history bookkeeping uses this form directly.
func essFromLogQP(logqp []float64) float64 {
	n := len(logqp)
	neg := make([]float64, n)
	neg2 := make([]float64, n)
	for i, v := range logqp {
		neg[i] = -v
		neg2[i] = -2 * v
	}
	logESS := 2*floats.LogSumExp(neg) - floats.LogSumExp(neg2)
	return math.Exp(logESS) / float64(n)
}

// CalcMinusLogESS returns log N minus the log of the un-normalized ESS; the
// log-domain form is numerically safer when the ESS is very small.
func CalcMinusLogESS(logq, logp []float64) float64 {
	logqp := diff(logq, logp)
	n := len(logqp)
	neg := make([]float64, n)
	neg2 := make([]float64, n)
	for i, v := range logqp {
		neg[i] = -v
		neg2[i] = -2 * v
	}
	logESS := 2*floats.LogSumExp(neg) - floats.LogSumExp(neg2)
	return -logESS + math.Log(float64(n))
}

// EstimateLogZ estimates log Z = log E_q[p/q] from logqp = logq - logp with
// a jackknife (leave-one-out) resampling estimator, returning the
// bias-corrected mean and its standard error.
func EstimateLogZ(logqp []float64) ValErr {
	n := len(logqp)
	if n == 0 {
		return ValErr{Mean: math.NaN(), Err: math.NaN()}
	}

	logpq := make([]float64, n)
	for i, v := range logqp {
		logpq[i] = -v
	}
	if n == 1 {
		return ValErr{Mean: logpq[0]}
	}

	shift := floats.Max(logpq)
	var total float64
	for _, v := range logpq {
		total += math.Exp(v - shift)
	}
	full := shift + math.Log(total) - math.Log(float64(n))

	loo := make([]float64, n)
	for i, v := range logpq {
		loo[i] = shift + math.Log(total-math.Exp(v-shift)) - math.Log(float64(n-1))
	}
	looMean := stat.Mean(loo, nil)

	var ss float64
	for _, v := range loo {
		d := v - looMean
		ss += d * d
	}

	return ValErr{
		Mean: float64(n)*full - float64(n-1)*looMean,
		Err:  math.Sqrt(float64(n-1) / float64(n) * ss),
	}
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
