package service

import (
	"time"

	"github.com/okian/gestor/internal/adapters/repository"
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSnapshotStore sets where the baseline snapshot is kept. The service
// owns the store and closes it on Stop.
func WithSnapshotStore(store repository.Store) Option {
	return func(s *Service) {
		s.snapshots = store
	}
}

// WithRecordStore sets the remote store accepted events are applied to.
func WithRecordStore(store RecordStore) Option {
	return func(s *Service) {
		s.records = store
	}
}

// WithRefreshOnApply replaces the snapshot with a review's incoming dataset
// once every event of that review was accepted and applied.
func WithRefreshOnApply(enabled bool) Option {
	return func(s *Service) {
		s.refreshOnApply = enabled
	}
}

// WithAppliedHistorySize bounds how many applied review ids are remembered.
func WithAppliedHistorySize(size int) Option {
	return func(s *Service) {
		s.historySize = size
	}
}

// WithMaxPendingReviews bounds the reviews awaiting confirmation.
func WithMaxPendingReviews(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPending = n
		}
	}
}

// WithSignalIDs overrides the signal fired per change kind.
func WithSignalIDs(ids map[change.Kind]string) Option {
	return func(s *Service) {
		s.signalIDs = ids
	}
}

// WithClock sets the clock used to stamp reviews.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
