package normflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotPathFor(t *testing.T) {
	cases := []struct {
		path      string
		epochsRun int
		want      string
	}{
		{"run/snap.json", 150, "run/snap.E150.json"},
		{"run/snap.E100.json", 150, "run/snap.E150.json"},
		{"snap", 5, "snap.E5"},
		{"snap.E7", 12, "snap.E12"},
		{"run/model.Expansion.json", 3, "run/model.Expansion.E3.json"},
		{"run/snap.E.json", 3, "run/snap.E.E3.json"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, snapshotPathFor(c.path, c.epochsRun), c.path)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")

	snap := Snapshot{
		RunID:     "abc",
		EpochsRun: 42,
		Params:    []float64{0.1, -0.2, 0.3},
		SavedAt:   time.Now().UTC(),
	}
	require.NoError(t, writeSnapshot(path, snap))

	got, err := readSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap.RunID, got.RunID)
	assert.Equal(t, snap.EpochsRun, got.EpochsRun)
	assert.Equal(t, snap.Params, got.Params)
}

func TestReadSnapshotMissingFile(t *testing.T) {
	_, err := readSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, ErrSnapshotLoad)
}

func TestReadSnapshotMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := readSnapshot(path)
	assert.ErrorIs(t, err, ErrSnapshotLoad)
}
