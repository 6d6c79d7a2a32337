package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/okian/gestor/internal/domain/model"
	"github.com/okian/gestor/pkg/logger"
	"github.com/okian/gestor/pkg/metrics"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists the snapshot in a SQLite database so it survives
// restarts.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
	cfg    settings
}

// OpenSQLite opens (or creates) the database at path and runs pending
// migrations. ":memory:" opens a private in-memory database.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging snapshot database: %w", err)
	}

	// One connection: keeps ":memory:" a single database and avoids
	// "database is locked" between writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, cfg: newSettings(opts)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// Load reads the snapshot back in capture order.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	if s.closed.Load() {
		return Snapshot{}, ErrClosed
	}

	var capturedAt string
	err := s.db.QueryRowContext(ctx, "SELECT captured_at FROM snapshot_meta WHERE id = 1").Scan(&capturedAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot meta: %w", err)
	}

	snap := Snapshot{Records: []model.ClientRecord{}}
	if snap.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt); err != nil {
		return Snapshot{}, fmt.Errorf("parsing captured_at %q: %w", capturedAt, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT owner_id, client_id, display_name, level, mood,
		at_risk, last_interaction_at, storage_key FROM snapshot_records ORDER BY position ASC`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying snapshot records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r        model.ClientRecord
			lastSeen string
		)
		if err := rows.Scan(&r.OwnerID, &r.ClientID, &r.DisplayName, &r.Level, &r.Mood,
			&r.AtRisk, &lastSeen, &r.StorageKey); err != nil {
			return Snapshot{}, fmt.Errorf("scanning snapshot record: %w", err)
		}
		if lastSeen != "" {
			if r.LastInteractionAt, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
				return Snapshot{}, fmt.Errorf("parsing last_interaction_at %q: %w", lastSeen, err)
			}
		}
		snap.Records = append(snap.Records, r)
	}
	return snap, rows.Err()
}

// Capture replaces the stored snapshot in a single transaction.
func (s *SQLiteStore) Capture(ctx context.Context, records []model.ClientRecord) (Snapshot, error) {
	if s.closed.Load() {
		return Snapshot{}, ErrClosed
	}
	if err := checkCapture(records); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Records: model.Clone(records), CapturedAt: s.cfg.now().UTC()}
	if snap.Records == nil {
		snap.Records = []model.ClientRecord{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("beginning capture: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_records"); err != nil {
		return Snapshot{}, fmt.Errorf("clearing snapshot records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_records
		(position, owner_id, client_id, display_name, level, mood, at_risk, last_interaction_at, storage_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range snap.Records {
		lastSeen := ""
		if !r.LastInteractionAt.IsZero() {
			lastSeen = r.LastInteractionAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.ExecContext(ctx, i, r.OwnerID, r.ClientID, r.DisplayName, r.Level, r.Mood,
			r.AtRisk, lastSeen, r.StorageKey); err != nil {
			return Snapshot{}, fmt.Errorf("inserting snapshot record %s: %w", r.Key(), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_meta (id, captured_at, record_count) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET captured_at = excluded.captured_at, record_count = excluded.record_count`,
		snap.CapturedAt.Format(time.RFC3339Nano), len(snap.Records)); err != nil {
		return Snapshot{}, fmt.Errorf("writing snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("committing capture: %w", err)
	}

	metrics.RecordSnapshotCaptured(len(snap.Records), snap.CapturedAt)
	s.cfg.logger.Info(ctx, "snapshot captured", logger.Int("records", len(snap.Records)), logger.String("backend", "sqlite"))
	return Snapshot{Records: model.Clone(snap.Records), CapturedAt: snap.CapturedAt}, nil
}
