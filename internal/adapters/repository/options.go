package repository

import (
	"time"

	"github.com/okian/gestor/pkg/logger"
)

// Option applies a configuration option to a snapshot store.
type Option func(*settings)

type settings struct {
	now    func() time.Time
	logger logger.Logger
}

func newSettings(opts []Option) settings {
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("snapshot")
	}
	return s
}

// WithClock sets the clock used to stamp captures.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}
