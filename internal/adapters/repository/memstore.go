package repository

import (
	"context"
	"sync"

	"github.com/okian/gestor/internal/domain/model"
	"github.com/okian/gestor/pkg/logger"
	"github.com/okian/gestor/pkg/metrics"
)

// MemStore keeps the snapshot in process memory.
type MemStore struct {
	mu     sync.RWMutex
	snap   Snapshot
	closed bool
	cfg    settings
}

// NewMemStore creates an empty in-memory snapshot store.
func NewMemStore(opts ...Option) *MemStore {
	return &MemStore{cfg: newSettings(opts)}
}

// Load returns a copy of the current snapshot.
func (s *MemStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	return Snapshot{Records: model.Clone(s.snap.Records), CapturedAt: s.snap.CapturedAt}, nil
}

// Capture replaces the snapshot.
func (s *MemStore) Capture(ctx context.Context, records []model.ClientRecord) (Snapshot, error) {
	if err := checkCapture(records); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Records: model.Clone(records), CapturedAt: s.cfg.now().UTC()}
	if snap.Records == nil {
		snap.Records = []model.ClientRecord{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	s.snap = snap
	s.mu.Unlock()

	metrics.RecordSnapshotCaptured(len(records), snap.CapturedAt)
	s.cfg.logger.Info(ctx, "snapshot captured", logger.Int("records", len(records)), logger.String("backend", "memory"))
	return Snapshot{Records: model.Clone(snap.Records), CapturedAt: snap.CapturedAt}, nil
}

// Close releases the snapshot. Later calls fail with ErrClosed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.snap = Snapshot{}
	return nil
}
