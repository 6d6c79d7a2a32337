package cli

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrDataset   = errors.New("invalid dataset")
	ErrServer    = errors.New("server request failed")
	ErrSelection = errors.New("invalid --accept list")
)

// APIError is a non-2xx reply from the gestor server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap ties every APIError to ErrServer.
func (e *APIError) Unwrap() error { return ErrServer }
