package domain

import (
	"errors"
)

// Job ledger statuses. PENDING is set by the gateway on submission; the
// agent moves jobs to RUNNING and then to a terminal state.
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

var (
	ErrJobNotFound = errors.New("job not found")
)
