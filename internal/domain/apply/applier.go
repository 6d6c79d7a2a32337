// Package apply executes accepted change events against the record store.
package apply

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/model"
	"github.com/okian/gestor/pkg/logger"
	"github.com/okian/gestor/pkg/metrics"
)

// RecordStore is the remote store the applier writes to. Every call must
// return before the applier moves on.
type RecordStore interface {
	// Create persists a new record and returns its storage key.
	Create(ctx context.Context, rec model.ClientRecord) (string, error)
	// Update overwrites an existing record.
	Update(ctx context.Context, rec model.ClientRecord) error
	// Notify fires the side-effect signal identified by signalID.
	Notify(ctx context.Context, signalID string, payload map[string]any) error
}

// ProgressFunc observes each event as soon as its result is known.
type ProgressFunc func(done, total int, r Result)

// Applier applies events one at a time, in order, with best-effort semantics.
type Applier struct {
	store     RecordStore
	signalIDs map[change.Kind]string
	progress  ProgressFunc
	logger    logger.Logger
}

// New creates an Applier writing to store.
func New(store RecordStore, opts ...Option) *Applier {
	a := &Applier{
		store:     store,
		signalIDs: make(map[change.Kind]string, len(change.DefaultSignalIDs)),
		logger:    logger.Get().Named("applier"),
	}
	for k, id := range change.DefaultSignalIDs {
		a.signalIDs[k] = id
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Apply runs events sequentially. Store failures are recorded in the
// Outcome and never stop the batch. The only error returned is
// change.ErrMalformedEvent, raised by a pre-flight check before any store
// call. Cancellation is honored between events: once ctx is done, the
// remaining events are counted as failed at StageSkipped.
func (a *Applier) Apply(ctx context.Context, events []change.Event) (Outcome, error) {
	for i, e := range events {
		if err := change.Check(e); err != nil {
			return Outcome{}, fmt.Errorf("apply: event %d: %w", i, err)
		}
	}

	start := time.Now()
	out := Outcome{Results: make([]Result, 0, len(events))}
	for i, e := range events {
		var r Result
		if err := ctx.Err(); err != nil {
			r = Result{Index: i, Event: e, Status: StatusFailed, Stage: StageSkipped, Err: err.Error()}
		} else {
			r = a.applyOne(ctx, i, e)
		}
		a.account(ctx, r)
		out.add(r)
		if a.progress != nil {
			a.progress(i+1, len(events), r)
		}
	}
	metrics.RecordApplyBatchDuration(float64(time.Since(start).Milliseconds()))

	a.logger.Info(ctx, "apply finished",
		logger.Int("events", len(events)),
		logger.Int("applied", out.Applied),
		logger.Int("failed", out.Failed),
		logger.Duration("took", time.Since(start)),
	)
	return out, nil
}

func (a *Applier) applyOne(ctx context.Context, i int, e change.Event) Result {
	r := Result{Index: i, Event: e, Status: StatusFailed}

	switch ev := e.(type) {
	case change.RecordCreated:
		key, err := timed(change.KindRecordCreated, StageCreate, func() (string, error) {
			return a.store.Create(ctx, ev.Record)
		})
		if err != nil {
			r.Stage, r.Err = StageCreate, err.Error()
			return r
		}
		r.Status, r.StorageKey = StatusApplied, key
		return r

	case change.Signaled:
		if _, err := timed(ev.Kind(), StageUpdate, func() (string, error) {
			return "", a.store.Update(ctx, ev.Subject())
		}); err != nil {
			r.Stage, r.Err = StageUpdate, err.Error()
			return r
		}
		if _, err := timed(ev.Kind(), StageNotify, func() (string, error) {
			return "", a.store.Notify(ctx, a.signalIDs[ev.Kind()], ev.Payload())
		}); err != nil {
			r.Stage, r.Err = StageNotify, err.Error()
			return r
		}
		r.Status = StatusApplied
		return r
	}

	// Unreachable after Check; kept so a new variant fails loudly.
	r.Stage, r.Err = StageSkipped, fmt.Sprintf("unsupported event %T", e)
	return r
}

func (a *Applier) account(ctx context.Context, r Result) {
	kind := string(r.Event.Kind())
	if r.Status == StatusApplied {
		metrics.RecordEventApplied(kind)
		a.logger.Debug(ctx, "event applied",
			logger.Int("index", r.Index),
			logger.String("kind", kind),
			logger.String("key", r.Event.Subject().Key().String()),
		)
		return
	}
	metrics.RecordEventFailed(kind, string(r.Stage))
	metrics.RecordErrorByComponent("applier", string(r.Stage)+"_error")
	a.logger.Warn(ctx, "event failed",
		logger.Int("index", r.Index),
		logger.String("kind", kind),
		logger.String("key", r.Event.Subject().Key().String()),
		logger.String("stage", string(r.Stage)),
		logger.String("error", r.Err),
	)
}

func timed(kind change.Kind, stage Stage, call func() (string, error)) (string, error) {
	start := time.Now()
	v, err := call()
	metrics.RecordStoreCall(string(stage), err == nil, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", stage, kind, err)
	}
	return v, nil
}
