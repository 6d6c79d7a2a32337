package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrReviewNotFound   = errors.New("review not found")
	ErrReviewApplied    = errors.New("review already applied")
	ErrInvalidSelection = errors.New("invalid event selection")
	ErrNoRecordStore    = errors.New("no record store configured")
)
