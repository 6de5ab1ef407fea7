package engine

import (
	"errors"
	"fmt"
)

// ErrNothingToResume is the benign-termination signal: the engine was asked
// to resume but nothing needed resuming. Callers treat it as a normal return.
var ErrNothingToResume = errors.New("engine: nothing to resume")

// UnknownTargetError reports a dependency target the engine could not
// resolve.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("engine: unknown target %s", e.Target)
}

// RemovedTargetError reports a dependency target that existed once but has
// been removed.
type RemovedTargetError struct {
	Target string
}

func (e *RemovedTargetError) Error() string {
	return fmt.Sprintf("engine: removed target %s", e.Target)
}

// PendingWorkError signals that tasks were submitted and the run must be
// resumed later. It is re-raised unmodified through the dispatch path so the
// caller can retry.
type PendingWorkError struct {
	Tasks []string
}

func (e *PendingWorkError) Error() string {
	return fmt.Sprintf("engine: %d tasks pending, resume to continue", len(e.Tasks))
}

// TargetOf extracts the target identity from an unknown/removed target
// failure. The second return is false for every other error.
func TargetOf(err error) (string, bool) {
	var unknown *UnknownTargetError
	if errors.As(err, &unknown) {
		return unknown.Target, true
	}
	var removed *RemovedTargetError
	if errors.As(err, &removed) {
		return removed.Target, true
	}
	return "", false
}
