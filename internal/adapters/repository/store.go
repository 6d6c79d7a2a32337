// Package repository holds the baseline snapshot the next diff is compared
// against. Only the last captured snapshot is kept.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gestor/internal/domain/model"
)

// Snapshot is a captured baseline dataset.
type Snapshot struct {
	Records    []model.ClientRecord `json:"records"`
	CapturedAt time.Time            `json:"captured_at,omitzero"`
}

// Empty reports whether nothing has been captured yet.
func (s Snapshot) Empty() bool { return s.CapturedAt.IsZero() }

// Store provides read/write access to the baseline snapshot.
type Store interface {
	// Load returns the last captured snapshot. Before the first capture it
	// returns an empty Snapshot and no error.
	Load(ctx context.Context) (Snapshot, error)

	// Capture replaces the snapshot with records. Datasets with duplicate
	// identities are refused and the previous snapshot is kept.
	Capture(ctx context.Context, records []model.ClientRecord) (Snapshot, error)

	Close() error
}

func checkCapture(records []model.ClientRecord) error {
	if _, err := model.Index("snapshot", records); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return nil
}
