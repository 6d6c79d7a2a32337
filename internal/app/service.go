// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
//
// The flow is capture, diff, review, apply: a baseline snapshot is captured,
// an incoming dataset is diffed against it into a pending review, and the
// accepted events of that review are applied to the record store.
package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gestor/internal/adapters/repository"
	"github.com/okian/gestor/internal/domain/apply"
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/classify"
	"github.com/okian/gestor/internal/domain/dedupe"
	"github.com/okian/gestor/internal/domain/matcher"
	"github.com/okian/gestor/internal/domain/model"
	"github.com/okian/gestor/pkg/logger"
	"github.com/okian/gestor/pkg/metrics"
)

// RecordStore is the remote store: the applier's write side plus the reads
// used to capture a snapshot from it.
type RecordStore interface {
	apply.RecordStore
	List(ctx context.Context) ([]model.ClientRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.ClientRecord, error)
}

// Review is a diff awaiting confirmation.
type Review struct {
	ID                 string
	CreatedAt          time.Time
	BaselineCapturedAt time.Time
	Events             []change.Event
	Rejected           []classify.Rejection

	incoming []model.ClientRecord
}

// Report is the result of applying a review.
type Report struct {
	ReviewID          string
	Outcome           apply.Outcome
	SnapshotRefreshed bool
}

// Service implements the API dependencies for the reconciliation flow.
type Service struct {
	mu sync.RWMutex

	// Core components
	snapshots repository.Store
	records   RecordStore
	applier   *apply.Applier
	applied   dedupe.Deduper

	// Pending reviews in creation order, oldest first.
	pending      map[string]*Review
	pendingOrder []string

	// Configuration
	refreshOnApply bool
	historySize    int
	maxPending     int
	signalIDs      map[change.Kind]string
	now            func() time.Time

	// Counters for GetStats
	diffs         atomic.Int64
	applies       atomic.Int64
	eventsApplied atomic.Int64
	eventsFailed  atomic.Int64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		pending:     make(map[string]*Review),
		historySize: 1024,
		maxPending:  64,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.snapshots == nil {
		s.snapshots = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory snapshot store")
	}
	s.applied = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.historySize))
	if s.records != nil {
		s.applier = apply.New(s.records,
			apply.WithSignalIDs(s.signalIDs),
			apply.WithLogger(s.logger.Named("applier")),
		)
	} else {
		s.logger.Warn(ctx, "no record store configured, apply is disabled")
	}

	if snap, err := s.snapshots.Load(ctx); err != nil {
		s.logger.Warn(ctx, "loading snapshot failed", logger.Error(err))
	} else {
		metrics.UpdateSnapshotRecords(len(snap.Records))
	}

	s.started = true
	s.logger.Info(ctx, "reconciliation service started",
		logger.Bool("refreshOnApply", s.refreshOnApply),
		logger.Int("maxPendingReviews", s.maxPending),
		logger.Int("appliedHistorySize", s.historySize),
	)
	return nil
}

// Stop releases the snapshot store and drops pending reviews.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping reconciliation service...")

	if s.snapshots != nil {
		if err := s.snapshots.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing snapshot store failed", logger.Error(err))
		}
	}
	s.pending = make(map[string]*Review)
	s.pendingOrder = nil
	metrics.UpdatePendingReviews(0)

	s.started = false
	s.logger.Info(context.Background(), "reconciliation service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Snapshot returns the current baseline.
func (s *Service) Snapshot(ctx context.Context) (repository.Snapshot, error) {
	if err := s.ready(); err != nil {
		return repository.Snapshot{}, err
	}
	return s.snapshots.Load(ctx)
}

// Capture replaces the baseline with records.
func (s *Service) Capture(ctx context.Context, records []model.ClientRecord) (repository.Snapshot, error) {
	if err := s.ready(); err != nil {
		return repository.Snapshot{}, err
	}
	snap, err := s.snapshots.Capture(ctx, records)
	if err != nil {
		metrics.RecordErrorByComponent("service", "capture_error")
		return repository.Snapshot{}, fmt.Errorf("capture: %w", err)
	}
	return snap, nil
}

// CaptureFromStore captures the records currently held by the record store.
// A non-empty ownerID limits the capture to that owner's records.
func (s *Service) CaptureFromStore(ctx context.Context, ownerID string) (repository.Snapshot, error) {
	if err := s.ready(); err != nil {
		return repository.Snapshot{}, err
	}
	if s.records == nil {
		return repository.Snapshot{}, ErrNoRecordStore
	}

	var (
		records []model.ClientRecord
		err     error
	)
	if ownerID != "" {
		records, err = s.records.ListByOwner(ctx, ownerID)
	} else {
		records, err = s.records.List(ctx)
	}
	if err != nil {
		metrics.RecordErrorByComponent("service", "list_error")
		return repository.Snapshot{}, fmt.Errorf("list records: %w", err)
	}
	return s.Capture(ctx, records)
}

// Compare matches and classifies incoming against baseline without touching
// any state. An identity collision in either dataset fails the whole pass.
func Compare(baseline, incoming []model.ClientRecord) ([]change.Event, []classify.Rejection, error) {
	res, err := matcher.Match(baseline, incoming)
	if err != nil {
		return nil, nil, err
	}
	events, rejected := classify.All(res)
	return events, rejected, nil
}

// Diff compares incoming against the current snapshot and keeps the result
// as a pending review.
func (s *Service) Diff(ctx context.Context, incoming []model.ClientRecord) (Review, error) {
	if err := s.ready(); err != nil {
		return Review{}, err
	}

	start := time.Now()
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		return Review{}, fmt.Errorf("load snapshot: %w", err)
	}

	events, rejected, err := Compare(snap.Records, incoming)
	if err != nil {
		metrics.RecordIdentityCollision()
		s.logger.Warn(ctx, "diff refused", logger.Error(err))
		return Review{}, fmt.Errorf("diff: %w", err)
	}
	metrics.RecordDiffDuration(float64(time.Since(start).Milliseconds()))
	for _, e := range events {
		metrics.RecordChangeDetected(string(e.Kind()))
	}
	for range rejected {
		metrics.RecordRecordRejected()
	}

	r := &Review{
		ID:                 uuid.NewString(),
		CreatedAt:          s.now().UTC(),
		BaselineCapturedAt: snap.CapturedAt,
		Events:             events,
		Rejected:           rejected,
		incoming:           model.Clone(incoming),
	}
	s.keep(r)
	s.diffs.Add(1)

	s.logger.Info(ctx, "review created",
		logger.String("review", r.ID),
		logger.Int("incoming", len(incoming)),
		logger.Int("events", len(events)),
		logger.Int("rejected", len(rejected)),
	)
	return *r, nil
}

func (s *Service) keep(r *Review) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[r.ID] = r
	s.pendingOrder = append(s.pendingOrder, r.ID)
	for len(s.pendingOrder) > s.maxPending {
		oldest := s.pendingOrder[0]
		s.pendingOrder = s.pendingOrder[1:]
		delete(s.pending, oldest)
		s.logger.Debug(context.Background(), "pending review dropped", logger.String("review", oldest))
	}
	metrics.UpdatePendingReviews(len(s.pending))
}

// Review returns a pending review.
func (s *Service) Review(ctx context.Context, id string) (Review, error) {
	if err := s.ready(); err != nil {
		return Review{}, err
	}
	s.mu.RLock()
	r, ok := s.pending[id]
	s.mu.RUnlock()
	if ok {
		return *r, nil
	}
	if s.applied.Seen(ctx, id) {
		return Review{}, ErrReviewApplied
	}
	return Review{}, ErrReviewNotFound
}

// Apply applies the events of review id selected by accept, given as
// indices into Review.Events. A nil accept selects every event; an empty one
// selects none. A review can be applied once.
func (s *Service) Apply(ctx context.Context, id string, accept []int) (Report, error) {
	if err := s.ready(); err != nil {
		return Report{}, err
	}
	if s.applier == nil {
		return Report{}, ErrNoRecordStore
	}

	r, events, err := s.claim(ctx, id, accept)
	if err != nil {
		return Report{}, err
	}

	out, err := s.applier.Apply(ctx, events)
	if err != nil {
		// Nothing reached the store; give the review back.
		s.release(ctx, r)
		return Report{}, fmt.Errorf("apply review %s: %w", id, err)
	}
	out.Rejected = r.Rejected
	s.account(out)

	rep := Report{ReviewID: id, Outcome: out}
	if s.refreshOnApply && out.Failed == 0 && len(events) == len(r.Events) {
		if err := s.refresh(ctx, r, out); err != nil {
			s.logger.Error(ctx, "snapshot refresh failed", logger.String("review", id), logger.Error(err))
			metrics.RecordErrorByComponent("service", "refresh_error")
		} else {
			rep.SnapshotRefreshed = true
		}
	}

	s.logger.Info(ctx, "review applied",
		logger.String("review", id),
		logger.Int("applied", out.Applied),
		logger.Int("failed", out.Failed),
		logger.Bool("snapshotRefreshed", rep.SnapshotRefreshed),
	)
	return rep, nil
}

// refresh replaces the snapshot after a fully accepted review. Records that
// classification rejected were never applied, so they keep their current
// baseline state, or stay out of the baseline when they had none.
func (s *Service) refresh(ctx context.Context, r *Review, out apply.Outcome) error {
	current, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	_, err = s.snapshots.Capture(ctx, nextBaseline(current.Records, r.incoming, r.Rejected, out))
	return err
}

// nextBaseline builds the refreshed records: incoming minus rejected records,
// with storage keys filled from the current baseline, the applied events and
// the keys returned for creations.
func nextBaseline(current, incoming []model.ClientRecord, rejected []classify.Rejection, out apply.Outcome) []model.ClientRecord {
	byKey := make(map[model.Key]model.ClientRecord, len(current))
	keys := make(map[model.Key]string)
	for _, rec := range current {
		byKey[rec.Key()] = rec
		if rec.StorageKey != "" {
			keys[rec.Key()] = rec.StorageKey
		}
	}
	for _, res := range out.Results {
		subject := res.Event.Subject()
		switch {
		case res.StorageKey != "":
			keys[subject.Key()] = res.StorageKey
		case subject.StorageKey != "":
			keys[subject.Key()] = subject.StorageKey
		}
	}
	skip := make(map[model.Key]bool, len(rejected))
	for _, rj := range rejected {
		skip[rj.Record.Key()] = true
	}

	next := make([]model.ClientRecord, 0, len(incoming))
	for _, rec := range incoming {
		if skip[rec.Key()] {
			prev, ok := byKey[rec.Key()]
			if !ok {
				continue
			}
			rec = prev
		}
		if rec.StorageKey == "" {
			rec.StorageKey = keys[rec.Key()]
		}
		next = append(next, rec)
	}
	return next
}

// claim takes review id out of the pending set and marks it applied.
func (s *Service) claim(ctx context.Context, id string, accept []int) (*Review, []change.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.pending[id]
	if !ok {
		if s.applied.Seen(ctx, id) {
			return nil, nil, ErrReviewApplied
		}
		return nil, nil, ErrReviewNotFound
	}

	events, err := selectEvents(r.Events, accept)
	if err != nil {
		return nil, nil, err
	}
	if s.applied.SeenAndRecord(ctx, id) {
		return nil, nil, ErrReviewApplied
	}
	delete(s.pending, id)
	s.pendingOrder = slices.DeleteFunc(s.pendingOrder, func(p string) bool { return p == id })
	metrics.UpdatePendingReviews(len(s.pending))
	return r, events, nil
}

func (s *Service) release(ctx context.Context, r *Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied.Unrecord(ctx, r.ID)
	s.pending[r.ID] = r
	s.pendingOrder = append(s.pendingOrder, r.ID)
	metrics.UpdatePendingReviews(len(s.pending))
}

// selectEvents keeps the accepted events in review order.
func selectEvents(events []change.Event, accept []int) ([]change.Event, error) {
	if accept == nil {
		return events, nil
	}
	idx := slices.Clone(accept)
	slices.Sort(idx)
	out := make([]change.Event, 0, len(idx))
	for i, n := range idx {
		if n < 0 || n >= len(events) {
			return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidSelection, n, len(events))
		}
		if i > 0 && idx[i-1] == n {
			return nil, fmt.Errorf("%w: index %d repeated", ErrInvalidSelection, n)
		}
		out = append(out, events[n])
	}
	return out, nil
}

// ApplyEvents applies an event list that did not come from a review, such
// as one decoded from the wire.
func (s *Service) ApplyEvents(ctx context.Context, events []change.Event) (apply.Outcome, error) {
	if err := s.ready(); err != nil {
		return apply.Outcome{}, err
	}
	if s.applier == nil {
		return apply.Outcome{}, ErrNoRecordStore
	}
	out, err := s.applier.Apply(ctx, events)
	if err != nil {
		return apply.Outcome{}, err
	}
	s.account(out)
	return out, nil
}

func (s *Service) account(out apply.Outcome) {
	s.applies.Add(1)
	s.eventsApplied.Add(int64(out.Applied))
	s.eventsFailed.Add(int64(out.Failed))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"refreshOnApply": s.refreshOnApply,
		"recordStore":    s.records != nil,
		"pendingReviews": len(s.pending),
		"diffs":          s.diffs.Load(),
		"applies":        s.applies.Load(),
		"eventsApplied":  s.eventsApplied.Load(),
		"eventsFailed":   s.eventsFailed.Load(),
	}

	if s.started {
		stats["appliedReviews"] = s.applied.Size()
		if snap, err := s.snapshots.Load(context.Background()); err == nil {
			stats["snapshotRecords"] = len(snap.Records)
			if !snap.Empty() {
				stats["snapshotCapturedAt"] = snap.CapturedAt
			}
			metrics.UpdateSnapshotRecords(len(snap.Records))
		}
	}

	return stats
}
