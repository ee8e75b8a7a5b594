package normflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleDevice(t *testing.T) {
	d := SingleDevice{}
	assert.Equal(t, 0, d.Rank())
	assert.Equal(t, 1, d.NRanks())

	x := []float64{1, 2, 3}
	got, err := d.AllGather(x)
	require.NoError(t, err)
	assert.Equal(t, x, got)

	// The gather result is a copy.
	got[0] = 99
	assert.Equal(t, 1.0, x[0])
}

func TestLocalGroupGatherRankOrder(t *testing.T) {
	g, err := NewLocalGroup(3, time.Second)
	require.NoError(t, err)

	var mu sync.Mutex
	results := make(map[int][]float64)

	err = g.Run(func(d DeviceHandler) error {
		out, err := d.AllGather([]float64{float64(d.Rank()), float64(d.Rank() * 10)})
		if err != nil {
			return err
		}
		mu.Lock()
		results[d.Rank()] = out
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	want := []float64{0, 0, 1, 10, 2, 20}
	for rank := 0; rank < 3; rank++ {
		assert.Equal(t, want, results[rank], "rank %d", rank)
	}
}

func TestLocalGroupRepeatedGathers(t *testing.T) {
	g, err := NewLocalGroup(2, time.Second)
	require.NoError(t, err)

	err = g.Run(func(d DeviceHandler) error {
		for round := 0; round < 5; round++ {
			out, err := d.AllGather([]float64{float64(round)})
			if err != nil {
				return err
			}
			if len(out) != 2 || out[0] != float64(round) || out[1] != float64(round) {
				t.Errorf("round %d rank %d: got %v", round, d.Rank(), out)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLocalGroupMissingRankTimesOut(t *testing.T) {
	g, err := NewLocalGroup(2, 50*time.Millisecond)
	require.NoError(t, err)

	// Only rank 0 shows up at the gather.
	_, err = g.Handler(0).AllGather([]float64{1})
	assert.ErrorIs(t, err, ErrCoordination)
}

func TestNewLocalGroupInvalidSize(t *testing.T) {
	_, err := NewLocalGroup(0, time.Second)
	assert.ErrorIs(t, err, ErrConfiguration)
}
