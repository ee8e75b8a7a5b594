package normflow

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DeviceHandler coordinates data-parallel ranks. Rank 0 is the coordinator;
// rank-gated side effects (printing, history bookkeeping, snapshot saving)
// run only there.
type DeviceHandler interface {
	Rank() int
	NRanks() int

	// AllGather concatenates each rank's tensor in rank order and returns
	// the full tensor to every rank.
	AllGather(x []float64) ([]float64, error)
}

// SingleDevice is the trivial handler for single-process training.
type SingleDevice struct{}

// Rank returns 0.
func (SingleDevice) Rank() int { return 0 }

// NRanks returns 1.
func (SingleDevice) NRanks() int { return 1 }

// AllGather returns a copy of x.
func (SingleDevice) AllGather(x []float64) ([]float64, error) {
	return append([]float64(nil), x...), nil
}

// LocalGroup coordinates n in-process ranks whose per-rank handlers
// rendezvous at every AllGather. A rank that waits longer than the group
// timeout for its peers fails with ErrCoordination; the gather is not
// retried.
type LocalGroup struct {
	nranks  int
	timeout time.Duration

	mu    sync.Mutex
	round *gatherRound
}

type gatherRound struct {
	parts   [][]float64
	missing int
	done    chan struct{}
}

// NewLocalGroup creates a group of n ranks. A zero timeout defaults to 30s.
func NewLocalGroup(n int, timeout time.Duration) (*LocalGroup, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: group size %d must be at least 1", ErrConfiguration, n)
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &LocalGroup{nranks: n, timeout: timeout}, nil
}

// Handler returns the DeviceHandler for the given rank.
func (g *LocalGroup) Handler(rank int) DeviceHandler {
	return &localRank{group: g, rank: rank}
}

// Run executes fn once per rank, each on its own goroutine, and waits for
// all of them, returning the first error.
func (g *LocalGroup) Run(fn func(d DeviceHandler) error) error {
	var eg errgroup.Group
	for rank := 0; rank < g.nranks; rank++ {
		d := g.Handler(rank)
		eg.Go(func() error { return fn(d) })
	}
	return eg.Wait()
}

func (g *LocalGroup) gather(rank int, x []float64) ([]float64, error) {
	g.mu.Lock()
	if g.round == nil {
		g.round = &gatherRound{
			parts:   make([][]float64, g.nranks),
			missing: g.nranks,
			done:    make(chan struct{}),
		}
	}
	r := g.round
	r.parts[rank] = append([]float64(nil), x...)
	r.missing--
	if r.missing == 0 {
		g.round = nil
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
	case <-time.After(g.timeout):
		return nil, fmt.Errorf("%w: rank %d timed out after %s waiting for gather peers",
			ErrCoordination, rank, g.timeout)
	}

	var out []float64
	for _, part := range r.parts {
		out = append(out, part...)
	}
	return out, nil
}

// localRank is one rank's handle onto a LocalGroup.
type localRank struct {
	group *LocalGroup
	rank  int
}

func (r *localRank) Rank() int   { return r.rank }
func (r *localRank) NRanks() int { return r.group.nranks }

func (r *localRank) AllGather(x []float64) ([]float64, error) {
	return r.group.gather(r.rank, x)
}
