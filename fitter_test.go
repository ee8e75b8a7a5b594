package normflow

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sky-flux/normflow/optim"
)

// recordingHandler captures slog records for assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) byMessage(msg string) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Message == msg {
			out = append(out, r)
		}
	}
	return out
}

func recordAttr(r slog.Record, key string) (slog.Value, bool) {
	var v slog.Value
	var found bool
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v = a.Value
			found = true
			return false
		}
		return true
	})
	return v, found
}

func newLoggedModel(t *testing.T, flow FlowNetwork, h slog.Handler) *Model {
	t.Helper()
	prior, err := NewNormalPrior(NormalPriorConfig{Dim: 2, Seed: 7})
	require.NoError(t, err)
	m, err := NewModel(ModelConfig{
		Prior:  prior,
		Flow:   flow,
		Action: QuadraticAction{Coupling: 1},
		Logger: slog.New(h),
	})
	require.NoError(t, err)
	return m
}

func boolPtr(v bool) *bool    { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestFitterDefaults(t *testing.T) {
	m := newTestModel(t, IdentityFlow{})

	hp := m.Fitter.Hyperparams()
	assert.Equal(t, optim.DefaultLR, hp["lr"])
	assert.Equal(t, optim.DefaultWeightDecay, hp["weight_decay"])

	ck := m.Fitter.Checkpoint()
	assert.Equal(t, 10, ck.PrintStride)
	assert.Equal(t, 1024, ck.PrintBatchSize)
	assert.False(t, ck.Display)
	assert.Zero(t, ck.EpochsRun)
}

func TestFitHyperparamsPersistAcrossCalls(t *testing.T) {
	m := newTestModel(t, IdentityFlow{})

	require.NoError(t, m.Fitter.Fit(FitConfig{Hyperparams: optim.Hyperparams{"lr": 0.05}}))
	require.NoError(t, m.Fitter.Fit(FitConfig{Hyperparams: optim.Hyperparams{"weight_decay": 0.2}}))

	hp := m.Fitter.Hyperparams()
	assert.Equal(t, 0.05, hp["lr"])
	assert.Equal(t, 0.2, hp["weight_decay"])
}

func TestFitCheckpointOverridesPersistAcrossCalls(t *testing.T) {
	m := newTestModel(t, IdentityFlow{})

	require.NoError(t, m.Fitter.Fit(FitConfig{
		Checkpoint: &CheckpointOverrides{PrintStride: intPtr(5)},
	}))
	require.NoError(t, m.Fitter.Fit(FitConfig{
		Checkpoint: &CheckpointOverrides{Display: boolPtr(true)},
	}))

	ck := m.Fitter.Checkpoint()
	assert.Equal(t, 5, ck.PrintStride)
	assert.True(t, ck.Display)
}

func TestFitZeroEpochsBuildsWithoutTraining(t *testing.T) {
	m := newTestModel(t, IdentityFlow{})
	require.NoError(t, m.Fitter.Fit(FitConfig{}))

	assert.Empty(t, m.Fitter.History.StepLoss)
	assert.Zero(t, m.Fitter.History.Evals())
	assert.Equal(t, 64, m.Fitter.TrainBatchSize)
}

func TestFitEvalCadence(t *testing.T) {
	m := newTestModel(t, IdentityFlow{})

	err := m.Fitter.Fit(FitConfig{
		Epochs:    25,
		BatchSize: 8,
		Checkpoint: &CheckpointOverrides{
			PrintStride:    intPtr(10),
			PrintBatchSize: intPtr(64),
		},
	})
	require.NoError(t, err)

	// Evaluations run on the first epoch and on every print-stride epoch.
	h := &m.Fitter.History
	assert.Len(t, h.StepLoss, 25)
	require.Equal(t, 3, h.Evals())
	assert.Len(t, h.Loss, 3)
	assert.Len(t, h.LogQP, 3)
	assert.Len(t, h.LogZ, 3)
	assert.Len(t, h.ESS, 3)
	assert.Len(t, h.Rho, 3)
	assert.Len(t, h.AcceptRate, 3)
}

func TestFitPrintBatchSizeMisconfigured(t *testing.T) {
	m := newTestModel(t, IdentityFlow{})

	err := m.Fitter.Fit(FitConfig{
		Epochs:     1,
		BatchSize:  4,
		Checkpoint: &CheckpointOverrides{PrintBatchSize: intPtr(0)},
	})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFitCustomLossAndScheduler(t *testing.T) {
	m := newTestModel(t, NewAffineFlow(2))

	lossCalls := 0
	customLoss := func(logq, logp []float64) float64 {
		lossCalls++
		return CalcKLMean(logq, logp)
	}

	err := m.Fitter.Fit(FitConfig{
		Epochs:    2,
		BatchSize: 4,
		Loss:      customLoss,
		NewScheduler: func(o optim.Optimizer) optim.Scheduler {
			return optim.NewCosineAnnealing(o, 0.001, 10)
		},
		Checkpoint: &CheckpointOverrides{
			PrintStride:    intPtr(100),
			PrintBatchSize: intPtr(16),
		},
	})
	require.NoError(t, err)
	assert.Greater(t, lossCalls, 0)
}

func TestFitSnapshotSaveAndResume(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snap.json")

	flow1 := NewAffineFlow(2)
	m1 := newTestModel(t, flow1)
	err := m1.Fitter.Fit(FitConfig{
		Epochs:      5,
		BatchSize:   4,
		Hyperparams: optim.Hyperparams{"lr": 0.001},
		Checkpoint: &CheckpointOverrides{
			SnapshotPath:   strPtr(snapPath),
			PrintStride:    intPtr(100),
			PrintBatchSize: intPtr(16),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, m1.Fitter.Checkpoint().EpochsRun)

	// The save-every default is the epoch count, so exactly one snapshot was
	// written, at the derived path, holding the final parameters.
	savedPath := filepath.Join(dir, "snap.E5.json")
	snap, err := readSnapshot(savedPath)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.EpochsRun)
	assert.Equal(t, flow1.Parameters(), snap.Params)

	// A fresh model resuming from the snapshot continues the epoch count.
	h := &recordingHandler{}
	flow2 := NewAffineFlow(2)
	m2 := newLoggedModel(t, flow2, h)
	err = m2.Fitter.Fit(FitConfig{
		Epochs:    3,
		BatchSize: 4,
		Checkpoint: &CheckpointOverrides{
			SnapshotPath:   strPtr(savedPath),
			PrintStride:    intPtr(100),
			PrintBatchSize: intPtr(16),
			Display:        boolPtr(true),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, m2.Fitter.Checkpoint().EpochsRun)

	// Status lines count epochs from the restored total.
	statuses := h.byMessage("fit status")
	require.NotEmpty(t, statuses)
	epoch, ok := recordAttr(statuses[0], "epoch")
	require.True(t, ok)
	assert.Equal(t, int64(6), epoch.Int64())

	// The resumed run's snapshot lands next to the old one with the new
	// cumulative count.
	_, err = os.Stat(filepath.Join(dir, "snap.E8.json"))
	assert.NoError(t, err)
}

func TestFitMissingSnapshotIsSkipped(t *testing.T) {
	m := newTestModel(t, IdentityFlow{})
	err := m.Fitter.Fit(FitConfig{
		Checkpoint: &CheckpointOverrides{
			SnapshotPath: strPtr(filepath.Join(t.TempDir(), "absent.json")),
		},
	})
	assert.NoError(t, err)
	assert.Zero(t, m.Fitter.Checkpoint().EpochsRun)
}

func TestFitMalformedSnapshotFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	m := newTestModel(t, IdentityFlow{})
	err := m.Fitter.Fit(FitConfig{
		Checkpoint: &CheckpointOverrides{SnapshotPath: strPtr(path)},
	})
	assert.ErrorIs(t, err, ErrSnapshotLoad)
}

func TestFitSnapshotParameterMismatchFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, writeSnapshot(path, Snapshot{
		RunID:     "other",
		EpochsRun: 10,
		Params:    []float64{1, 2}, // the flow below has 4 parameters
	}))

	m := newTestModel(t, NewAffineFlow(2))
	err := m.Fitter.Fit(FitConfig{
		Checkpoint: &CheckpointOverrides{SnapshotPath: strPtr(path)},
	})
	assert.ErrorIs(t, err, ErrSnapshotLoad)
}
