package normflow

import (
	"testing"

	"github.com/sky-flux/normflow/mask"
)

func benchModel(b *testing.B) *Model {
	b.Helper()
	even, err := mask.NewEvenOdd(mask.EvenOddConfig{Shape: []int{4, 4}})
	if err != nil {
		b.Fatal(err)
	}
	odd, err := mask.NewEvenOdd(mask.EvenOddConfig{Shape: []int{4, 4}, Parity: 1})
	if err != nil {
		b.Fatal(err)
	}
	flow := NewComposedFlow(
		NewAdditiveCoupling(16, even),
		NewAdditiveCoupling(16, odd),
		NewAffineFlow(16),
	)
	prior, err := NewNormalPrior(NormalPriorConfig{Dim: 16, Seed: 1})
	if err != nil {
		b.Fatal(err)
	}
	m, err := NewModel(ModelConfig{
		Prior:  prior,
		Flow:   flow,
		Action: QuadraticAction{Coupling: 2},
	})
	if err != nil {
		b.Fatal(err)
	}
	return m
}

func BenchmarkPosteriorSampleQ(b *testing.B) {
	m := benchModel(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Posterior.SampleQ(64)
	}
}

func BenchmarkPosteriorLogProb(b *testing.B) {
	m := benchModel(b)
	y := m.Posterior.Sample(64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Posterior.LogProb(y)
	}
}

func BenchmarkFitEpoch(b *testing.B) {
	m := benchModel(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.Fitter.Fit(FitConfig{
			Epochs:    1,
			BatchSize: 32,
			Checkpoint: &CheckpointOverrides{
				PrintStride:    intPtr(1_000_000),
				PrintBatchSize: intPtr(32),
			},
		}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEstimateLogZ(b *testing.B) {
	m := benchModel(b)
	_, logq, logp := m.Posterior.SampleQP(1024)
	logqp := diff(logq, logp)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EstimateLogZ(logqp)
	}
}

func BenchmarkMaskSplit(b *testing.B) {
	even, err := mask.NewEvenOdd(mask.EvenOddConfig{Shape: []int{32, 32}})
	if err != nil {
		b.Fatal(err)
	}
	x := make([]float64, 1024)
	for i := range x {
		x[i] = float64(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		even.Split(x)
	}
}
