package change

import (
	"fmt"

	"github.com/okian/gestor/internal/domain/model"
)

// Wire is the flat JSON shape of an Event used by the HTTP API and the CLI.
// Kind-specific fields are present only for the kinds that carry them.
type Wire struct {
	Kind          Kind               `json:"kind"`
	Record        model.ClientRecord `json:"record"`
	PreviousLevel *int               `json:"previous_level,omitempty"`
	NewLevel      *int               `json:"new_level,omitempty"`
	Delta         *int               `json:"delta,omitempty"`
	PreviousMood  *int               `json:"previous_mood,omitempty"`
	NewMood       *int               `json:"new_mood,omitempty"`
}

func intp(v int) *int { return &v }

// Encode flattens e into its wire form.
func Encode(e Event) Wire {
	w := Wire{Kind: e.Kind(), Record: e.Subject()}
	switch ev := e.(type) {
	case LevelIncreased:
		w.PreviousLevel, w.NewLevel, w.Delta = intp(ev.PreviousLevel), intp(ev.NewLevel), intp(ev.Delta)
	case LevelDecreased:
		w.PreviousLevel, w.NewLevel, w.Delta = intp(ev.PreviousLevel), intp(ev.NewLevel), intp(ev.Delta)
	case MoodImproved:
		w.PreviousMood, w.NewMood = intp(ev.PreviousMood), intp(ev.NewMood)
	case MoodWorsened:
		w.PreviousMood, w.NewMood = intp(ev.PreviousMood), intp(ev.NewMood)
	}
	return w
}

// EncodeAll encodes events in order.
func EncodeAll(events []Event) []Wire {
	out := make([]Wire, len(events))
	for i, e := range events {
		out[i] = Encode(e)
	}
	return out
}

// Decode rebuilds an Event from w and runs Check on it.
func Decode(w Wire) (Event, error) {
	var e Event
	switch w.Kind {
	case KindLevelIncreased, KindLevelDecreased:
		if w.PreviousLevel == nil || w.NewLevel == nil {
			return nil, fmt.Errorf("%w: %s requires previous_level and new_level", ErrMalformedEvent, w.Kind)
		}
		delta := *w.NewLevel - *w.PreviousLevel
		if w.Kind == KindLevelIncreased {
			e = LevelIncreased{Record: w.Record, PreviousLevel: *w.PreviousLevel, NewLevel: *w.NewLevel, Delta: delta}
		} else {
			e = LevelDecreased{Record: w.Record, PreviousLevel: *w.PreviousLevel, NewLevel: *w.NewLevel, Delta: -delta}
		}
		if w.Delta != nil && *w.Delta != absInt(delta) {
			return nil, fmt.Errorf("%w: %s delta %d does not match levels", ErrMalformedEvent, w.Kind, *w.Delta)
		}
	case KindMoodImproved, KindMoodWorsened:
		if w.PreviousMood == nil || w.NewMood == nil {
			return nil, fmt.Errorf("%w: %s requires previous_mood and new_mood", ErrMalformedEvent, w.Kind)
		}
		if w.Kind == KindMoodImproved {
			e = MoodImproved{Record: w.Record, PreviousMood: *w.PreviousMood, NewMood: *w.NewMood}
		} else {
			e = MoodWorsened{Record: w.Record, PreviousMood: *w.PreviousMood, NewMood: *w.NewMood}
		}
	case KindRiskFlagRaised:
		e = RiskFlagRaised{Record: w.Record}
	case KindRiskFlagCleared:
		e = RiskFlagCleared{Record: w.Record}
	case KindRecordCreated:
		e = RecordCreated{Record: w.Record}
	default:
		return nil, fmt.Errorf("%w: %w %q", ErrMalformedEvent, ErrUnknownKind, w.Kind)
	}
	if err := Check(e); err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeAll decodes ws in order, failing on the first malformed entry.
func DecodeAll(ws []Wire) ([]Event, error) {
	out := make([]Event, len(ws))
	for i, w := range ws {
		e, err := Decode(w)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
