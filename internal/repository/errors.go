package repository

import "errors"

var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptCompleted = errors.New("attempt is already completed")
	// ErrAlreadyFinalized is returned together with the stored attempt when a
	// finalize write lost the race to an earlier one.
	ErrAlreadyFinalized = errors.New("attempt was already finalized")
)
