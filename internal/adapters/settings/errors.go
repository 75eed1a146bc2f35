package settings

import "errors"

// Sentinel kinds for settings store errors.
var (
	ErrRead  = errors.New("read settings")
	ErrWrite = errors.New("write settings")
)
