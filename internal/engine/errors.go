package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is an engine-level failure, as opposed to a rejected
// gesture (those are *canvas.Error values carried in Outcome.Err).
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Seq identifies the journal entry involved, when there is one.
	Seq int64
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeEngineStopped indicates a submission after Stop.
	ErrCodeEngineStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeUnknownGesture indicates a journal or script names no known gesture.
	ErrCodeUnknownGesture RuntimeErrorCode = "UNKNOWN_GESTURE"

	// ErrCodeReplayDiverged indicates a replayed gesture did not reproduce
	// its recorded result.
	ErrCodeReplayDiverged RuntimeErrorCode = "REPLAY_DIVERGED"
)

func (e *RuntimeError) Error() string {
	if e.Seq != 0 {
		return fmt.Sprintf("%s: %s (seq=%d)", e.Code, e.Message, e.Seq)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStopped reports whether err is an ENGINE_STOPPED error.
func IsStopped(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeEngineStopped
}

// IsReplayDiverged reports whether err is a REPLAY_DIVERGED error.
func IsReplayDiverged(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeReplayDiverged
}

func newDivergedError(seq int64, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReplayDiverged,
		Message: fmt.Sprintf(format, args...),
		Seq:     seq,
	}
}
