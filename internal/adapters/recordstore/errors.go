package recordstore

import (
	"errors"
	"fmt"
)

// Sentinel kinds for record store errors.
var (
	ErrStore             = errors.New("record store error")
	ErrMissingStorageKey = errors.New("record has no storage key")
)

// StatusError is a non-2xx answer from the record store.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("record store %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("record store %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrStore }
