package riot

import (
	"errors"
	"fmt"
)

// Sentinel kinds for gateway and session failures. Callers classify with
// errors.Is; only ErrUnauthorized signals that a refresh-and-retry is worth
// attempting.
var (
	ErrNoSession    = errors.New("no established session")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrUnreachable  = errors.New("unreachable")
	ErrMalformed    = errors.New("malformed response")
	ErrRequest      = errors.New("request failed")
)

// Error is a classified gateway failure. Err carries the underlying
// transport error when one exists.
type Error struct {
	Gateway string
	Status  int
	Kind    error
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s gateway: %v (status %d)", e.Gateway, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s gateway: %v: %v", e.Gateway, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s gateway: %v", e.Gateway, e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// classifyStatus maps an HTTP status to a sentinel kind.
func classifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 404:
		return ErrNotFound
	default:
		return ErrRequest
	}
}
