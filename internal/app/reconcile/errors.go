package reconcile

import "errors"

var (
	// ErrCycleInProgress is returned when a cycle is triggered while another
	// one is still running.
	ErrCycleInProgress = errors.New("reconciliation cycle already in progress")
	// ErrRosterUnavailable aborts a cycle whose roster cannot be listed.
	ErrRosterUnavailable = errors.New("roster unavailable")
	// ErrStorageUnavailable aborts a cycle whose storage cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNoData is recorded on a skipped member: no source produced a score.
	ErrNoData = errors.New("no data from any source")
)
