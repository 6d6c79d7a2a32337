package repository

import "errors"

// Sentinel kinds for snapshot errors.
var (
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrClosed          = errors.New("snapshot store closed")
)
