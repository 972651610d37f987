package service

import "errors"

var ErrAttemptInProgress = errors.New("attempt has not been submitted yet")
