// Package classify turns matched and unmatched records into change events.
package classify

import (
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/matcher"
	"github.com/okian/gestor/internal/domain/model"
)

// Rejection is a record skipped by classification because it was malformed.
type Rejection struct {
	Record model.ClientRecord `json:"record"`
	Reason string             `json:"reason"`
}

// Pair classifies one matched pair. Level, mood and risk rules are evaluated
// independently, so a pair yields zero to three events. Both records are
// assumed valid; see All for the validating entry point.
func Pair(p matcher.Pair) []change.Event {
	base, in := p.Baseline, p.Incoming
	if in.StorageKey == "" {
		in.StorageKey = base.StorageKey
	}

	var events []change.Event
	switch {
	case in.Level > base.Level:
		events = append(events, change.LevelIncreased{
			Record: in, PreviousLevel: base.Level, NewLevel: in.Level, Delta: in.Level - base.Level,
		})
	case in.Level < base.Level:
		events = append(events, change.LevelDecreased{
			Record: in, PreviousLevel: base.Level, NewLevel: in.Level, Delta: base.Level - in.Level,
		})
	}

	switch {
	case in.Mood > base.Mood:
		events = append(events, change.MoodImproved{Record: in, PreviousMood: base.Mood, NewMood: in.Mood})
	case in.Mood < base.Mood:
		events = append(events, change.MoodWorsened{Record: in, PreviousMood: base.Mood, NewMood: in.Mood})
	}

	switch {
	case !base.AtRisk && in.AtRisk:
		events = append(events, change.RiskFlagRaised{Record: in})
	case base.AtRisk && !in.AtRisk:
		events = append(events, change.RiskFlagCleared{Record: in})
	}
	return events
}

// New classifies an unmatched incoming record: always one RecordCreated.
func New(rec model.ClientRecord) []change.Event {
	return []change.Event{change.RecordCreated{Record: rec}}
}

// All classifies a whole match result in incoming order. Records failing
// validation (either side of a pair) are skipped and returned as rejections;
// the rest are still classified.
func All(res matcher.Result) ([]change.Event, []Rejection) {
	var (
		events   []change.Event
		rejected []Rejection
	)
	res.Each(func(base *model.ClientRecord, in model.ClientRecord) {
		if err := in.Validate(); err != nil {
			rejected = append(rejected, Rejection{Record: in, Reason: err.Error()})
			return
		}
		if base == nil {
			events = append(events, New(in)...)
			return
		}
		if err := base.Validate(); err != nil {
			rejected = append(rejected, Rejection{Record: in, Reason: "baseline " + err.Error()})
			return
		}
		events = append(events, Pair(matcher.Pair{Baseline: *base, Incoming: in})...)
	})
	return events, rejected
}
