package app

import "errors"

// Sentinel kinds for engine lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("engine already started")
	ErrNotStarted     = errors.New("engine not started")
)
