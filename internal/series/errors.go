package series

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrUnresolvedConflicts = errors.New("unresolved conflicts")
	ErrPersistenceFailure  = errors.New("persistence failure")
	ErrNotFound            = errors.New("not found")

	ErrNotConflicted = errors.New("slot has no conflict to ignore")
	ErrSlotIndex     = errors.New("slot index out of range")
	ErrSeriesBusy    = errors.New("series is being modified, please retry")
)

var (
	ErrPrescriptionNotFound = fmt.Errorf("prescription %w", ErrNotFound)
	ErrSeriesNotFound       = fmt.Errorf("series %w", ErrNotFound)
	ErrPreviewNotFound      = fmt.Errorf("preview %w", ErrNotFound)
	ErrAbsenceNotFound      = fmt.Errorf("absence %w", ErrNotFound)
	ErrPractitionerNotFound = fmt.Errorf("practitioner %w", ErrNotFound)
	ErrRoomNotFound         = fmt.Errorf("room %w", ErrNotFound)
	ErrTreatmentNotFound    = fmt.Errorf("treatment %w", ErrNotFound)
)

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// UnresolvedConflictsError rejects a commit before anything is persisted.
type UnresolvedConflictsError struct {
	Count int
}

func (e *UnresolvedConflictsError) Error() string {
	return fmt.Sprintf("%d slot(s) have unresolved conflicts", e.Count)
}

func (e *UnresolvedConflictsError) Unwrap() error { return ErrUnresolvedConflicts }

// PersistenceError reports the first slot whose creation request failed.
// Index is the position in submission order.
type PersistenceError struct {
	Index         int
	SessionNumber int
	Err           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("create appointment for session %d (slot %d): %v", e.SessionNumber, e.Index, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistenceFailure, e.Err} }
