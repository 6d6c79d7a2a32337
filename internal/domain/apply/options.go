package apply

import (
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/pkg/logger"
)

// Option applies a configuration option to the Applier.
type Option func(*Applier)

// WithSignalIDs overrides the signal fired per kind. Kinds missing from ids
// keep their default; empty ids are ignored.
func WithSignalIDs(ids map[change.Kind]string) Option {
	return func(a *Applier) {
		for k, id := range ids {
			if _, ok := change.DefaultSignalIDs[k]; ok && id != "" {
				a.signalIDs[k] = id
			}
		}
	}
}

// WithProgress registers a callback invoked after every event.
func WithProgress(fn ProgressFunc) Option {
	return func(a *Applier) {
		a.progress = fn
	}
}

// WithLogger sets a custom logger for the applier.
func WithLogger(l logger.Logger) Option {
	return func(a *Applier) {
		if l != nil {
			a.logger = l
		}
	}
}
