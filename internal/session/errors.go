package session

import "errors"

var (
	ErrNotStarted       = errors.New("session has not been started")
	ErrAttemptCompleted = errors.New("attempt is already completed")
	ErrSessionClosed    = errors.New("session is closed")
	ErrTimeUp           = errors.New("time is up for this attempt")
	ErrQuestionNotFound = errors.New("question not found in exam")
	ErrNotCodeQuestion  = errors.New("question is not a code question")
)

// FinalizeError is a failed finalize. The session stays in progress with its
// answers intact and the caller may submit again.
type FinalizeError struct {
	Err error
}

func (e *FinalizeError) Error() string {
	return "failed to finalize attempt: " + e.Err.Error()
}

func (e *FinalizeError) Unwrap() error {
	return e.Err
}

func (e *FinalizeError) Retryable() bool {
	return true
}
