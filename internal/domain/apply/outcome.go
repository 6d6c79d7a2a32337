package apply

import (
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/classify"
)

// Status is the final state of one event.
type Status string

const (
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
)

// Stage names the step at which an event failed.
type Stage string

const (
	StageCreate  Stage = "create"
	StageUpdate  Stage = "update"
	StageNotify  Stage = "notify"
	StageSkipped Stage = "skipped"
)

// Result is the accounting for one input event.
type Result struct {
	Index      int
	Event      change.Event
	Status     Status
	StorageKey string // set for applied creations
	Stage      Stage  // set for failures
	Err        string
}

// Failure is a failed event with the stage and error that stopped it.
type Failure struct {
	Index int
	Event change.Event
	Stage Stage
	Err   string
}

// Outcome aggregates one apply run. Applied+Failed always equals the number
// of input events; a run with failures is still a completed run.
type Outcome struct {
	Applied  int
	Failed   int
	Results  []Result
	Failures []Failure

	// Rejected carries classification failures from the diff that produced
	// the events. The applier never fills it.
	Rejected []classify.Rejection
}

func (o *Outcome) add(r Result) {
	o.Results = append(o.Results, r)
	if r.Status == StatusApplied {
		o.Applied++
		return
	}
	o.Failed++
	o.Failures = append(o.Failures, Failure{Index: r.Index, Event: r.Event, Stage: r.Stage, Err: r.Err})
}
