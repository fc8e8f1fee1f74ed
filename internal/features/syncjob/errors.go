package syncjob

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyClaimed means another worker won the pending->processing race.
	ErrAlreadyClaimed = errors.New("sync job already claimed")

	ErrJobNotFound = errors.New("sync job not found")
)

// SyncAlreadyInProgressError carries the active job's id so the caller can
// poll it instead of racing a duplicate.
type SyncAlreadyInProgressError struct {
	ExistingJobID string
}

func (e *SyncAlreadyInProgressError) Error() string {
	return fmt.Sprintf("a sync is already in progress (job %s)", e.ExistingJobID)
}
