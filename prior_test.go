package normflow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalPriorDefaults(t *testing.T) {
	p, err := NewNormalPrior(NormalPriorConfig{Dim: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Dim())
}

func TestNewNormalPriorErrors(t *testing.T) {
	_, err := NewNormalPrior(NormalPriorConfig{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewNormalPrior(NormalPriorConfig{Dim: 2, Sigma: -1})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNormalPriorSampleShape(t *testing.T) {
	p, err := NewNormalPrior(NormalPriorConfig{Dim: 4, Seed: 1})
	require.NoError(t, err)

	x := p.Sample(7)
	require.Len(t, x, 7)
	for _, row := range x {
		assert.Len(t, row, 4)
	}
}

func TestNormalPriorSeedReproducible(t *testing.T) {
	p1, err := NewNormalPrior(NormalPriorConfig{Dim: 2, Seed: 42})
	require.NoError(t, err)
	p2, err := NewNormalPrior(NormalPriorConfig{Dim: 2, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, p1.Sample(5), p2.Sample(5))
}

func TestNormalPriorLogProbStandard(t *testing.T) {
	p, err := NewNormalPrior(NormalPriorConfig{Dim: 2, Seed: 1})
	require.NoError(t, err)

	x := [][]float64{{0.5, -1.5}, {0, 0}}
	got := p.LogProb(x)

	for i, row := range x {
		want := 0.0
		for _, v := range row {
			want += -0.5*v*v - 0.5*math.Log(2*math.Pi)
		}
		assert.InDelta(t, want, got[i], 1e-12, "sample %d", i)
	}
}

func TestNormalPriorSampleWithLogProbConsistent(t *testing.T) {
	p, err := NewNormalPrior(NormalPriorConfig{Dim: 3, Mu: 0.5, Sigma: 2, Seed: 9})
	require.NoError(t, err)

	x, logr := p.SampleWithLogProb(16)
	recomputed := p.LogProb(x)
	for i := range logr {
		assert.InDelta(t, recomputed[i], logr[i], 1e-12)
	}
}

func TestNormalPriorMoments(t *testing.T) {
	p, err := NewNormalPrior(NormalPriorConfig{Dim: 1, Mu: 2, Sigma: 0.5, Seed: 3})
	require.NoError(t, err)

	x := p.Sample(20000)
	var sum, sumSq float64
	for _, row := range x {
		sum += row[0]
		sumSq += row[0] * row[0]
	}
	mean := sum / float64(len(x))
	variance := sumSq/float64(len(x)) - mean*mean

	assert.InDelta(t, 2.0, mean, 0.02)
	assert.InDelta(t, 0.25, variance, 0.02)
}
