package normflow

import "errors"

// Sentinel errors for the normflow package.
// Use errors.Is to check: errors.Is(err, normflow.ErrSnapshotLoad)
var (
	ErrConfiguration  = errors.New("normflow: invalid configuration")
	ErrSnapshotLoad   = errors.New("normflow: snapshot load failed")
	ErrCoordination   = errors.New("normflow: distributed gather failed")
	ErrParameterCount = errors.New("normflow: parameter vector length mismatch")
)
