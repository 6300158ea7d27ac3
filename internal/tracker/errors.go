package tracker

import (
	"errors"
	"fmt"

	"pawbot/internal/reminder"
	"pawbot/internal/storage"
)

var (
	ErrInvalidWeight     = errors.New("weight must be a positive number")
	ErrInvalidDate       = errors.New("date must be 'today' or YYYY-MM-DD")
	ErrDuplicateReminder = errors.New("an identical reminder already exists")
	ErrIndexOutOfRange   = errors.New("reminder number out of range")

	ErrInvalidTimeFormat = reminder.ErrInvalidTimeFormat
	ErrEmptyMessage      = reminder.ErrEmptyMessage
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a 1-based reminder index outside [1, Count].
type NotFoundError struct {
	Index int
	Count int
	Err   error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reminder %d not found (have %d): %v", e.Index, e.Count, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// SchedulingError means the job table refused a job. The Store change that
// preceded it has been rolled back.
type SchedulingError struct {
	ID  string
	Err error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("schedule %s: %v", e.ID, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// PersistenceError is returned when a mutation was applied in memory but could
// not be written yet.
type PersistenceError = storage.PersistenceError

// IsPersistence reports whether err only signals a deferred write.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
