package normflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot is the persisted training state: the flow network's parameter
// vector and the cumulative number of completed epochs. RunID identifies the
// training run that wrote the snapshot.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	EpochsRun int       `json:"epochs_run"`
	Params    []float64 `json:"params"`
	SavedAt   time.Time `json:"saved_at"`
}

// snapshotPathFor derives the per-save path by inserting ".E<epochs>" before
// the extension, replacing any existing epoch suffix:
//
//	run/snap.json      → run/snap.E150.json
//	run/snap.E100.json → run/snap.E150.json
//
// Each save event writes a new file, preserving all historical snapshots.
func snapshotPathFor(path string, epochsRun int) string {
	ext := filepath.Ext(path)
	if strings.HasPrefix(ext, ".E") && isDigits(ext[2:]) {
		// Extensionless path whose last element is an old epoch suffix.
		path = strings.TrimSuffix(path, ext)
		ext = filepath.Ext(path)
	}
	base := strings.TrimSuffix(path, ext)
	if i := strings.LastIndex(base, ".E"); i >= 0 && isDigits(base[i+2:]) {
		base = base[:i]
	}
	return fmt.Sprintf("%s.E%d%s", base, epochsRun, ext)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func writeSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// readSnapshot loads a snapshot file. Any failure to read or decode it is
// reported as ErrSnapshotLoad.
func readSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotLoad, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotLoad, err)
	}
	return snap, nil
}
