// Package change defines the closed set of change events produced by
// classification and consumed by the applier.
package change

import (
	"fmt"

	"github.com/okian/gestor/internal/domain/model"
)

// Kind names an event variant.
type Kind string

// Kinds, one per Event variant.
const (
	KindLevelIncreased  Kind = "level_increased"
	KindLevelDecreased  Kind = "level_decreased"
	KindMoodImproved    Kind = "mood_improved"
	KindMoodWorsened    Kind = "mood_worsened"
	KindRiskFlagRaised  Kind = "risk_flag_raised"
	KindRiskFlagCleared Kind = "risk_flag_cleared"
	KindRecordCreated   Kind = "record_created"
)

// Kinds lists every kind in classification order.
var Kinds = []Kind{
	KindLevelIncreased, KindLevelDecreased,
	KindMoodImproved, KindMoodWorsened,
	KindRiskFlagRaised, KindRiskFlagCleared,
	KindRecordCreated,
}

// DefaultSignalIDs maps each signaling kind to the action fired after its update.
var DefaultSignalIDs = map[Kind]string{
	KindLevelIncreased:  "cliente_subiu_nivel",
	KindLevelDecreased:  "cliente_desceu_nivel",
	KindMoodImproved:    "humor_melhorou",
	KindMoodWorsened:    "humor_piorou",
	KindRiskFlagRaised:  "alerta_vermelho",
	KindRiskFlagCleared: "risco_resolvido",
}

// Event is one detected difference. The set of implementations is closed:
// only the types in this package satisfy it.
type Event interface {
	Kind() Kind
	// Subject is the new-state record the event pertains to.
	Subject() model.ClientRecord
	sealed()
}

// Signaled is implemented by every event that updates an existing record and
// then fires a side-effect signal. RecordCreated does not implement it.
type Signaled interface {
	Event
	Payload() map[string]any
}

// LevelIncreased reports level going up. Delta is NewLevel-PreviousLevel.
type LevelIncreased struct {
	Record        model.ClientRecord
	PreviousLevel int
	NewLevel      int
	Delta         int
}

// LevelDecreased reports level going down. Delta is the positive size of the drop.
type LevelDecreased struct {
	Record        model.ClientRecord
	PreviousLevel int
	NewLevel      int
	Delta         int
}

// MoodImproved reports mood going up.
type MoodImproved struct {
	Record       model.ClientRecord
	PreviousMood int
	NewMood      int
}

// MoodWorsened reports mood going down.
type MoodWorsened struct {
	Record       model.ClientRecord
	PreviousMood int
	NewMood      int
}

// RiskFlagRaised reports the at-risk flag turning on.
type RiskFlagRaised struct {
	Record model.ClientRecord
}

// RiskFlagCleared reports the at-risk flag turning off.
type RiskFlagCleared struct {
	Record model.ClientRecord
}

// RecordCreated marks an incoming record absent from the baseline.
type RecordCreated struct {
	Record model.ClientRecord
}

func (LevelIncreased) Kind() Kind  { return KindLevelIncreased }
func (LevelDecreased) Kind() Kind  { return KindLevelDecreased }
func (MoodImproved) Kind() Kind    { return KindMoodImproved }
func (MoodWorsened) Kind() Kind    { return KindMoodWorsened }
func (RiskFlagRaised) Kind() Kind  { return KindRiskFlagRaised }
func (RiskFlagCleared) Kind() Kind { return KindRiskFlagCleared }
func (RecordCreated) Kind() Kind   { return KindRecordCreated }

func (e LevelIncreased) Subject() model.ClientRecord  { return e.Record }
func (e LevelDecreased) Subject() model.ClientRecord  { return e.Record }
func (e MoodImproved) Subject() model.ClientRecord    { return e.Record }
func (e MoodWorsened) Subject() model.ClientRecord    { return e.Record }
func (e RiskFlagRaised) Subject() model.ClientRecord  { return e.Record }
func (e RiskFlagCleared) Subject() model.ClientRecord { return e.Record }
func (e RecordCreated) Subject() model.ClientRecord   { return e.Record }

func (LevelIncreased) sealed()  {}
func (LevelDecreased) sealed()  {}
func (MoodImproved) sealed()    {}
func (MoodWorsened) sealed()    {}
func (RiskFlagRaised) sealed()  {}
func (RiskFlagCleared) sealed() {}
func (RecordCreated) sealed()   {}

// Payload keys understood by the action endpoint.
const (
	payloadClientID = "cliente_id"
	payloadDelta    = "diferenca"
	payloadFrom     = "de"
	payloadTo       = "para"
)

func (e LevelIncreased) Payload() map[string]any {
	return map[string]any{payloadClientID: e.Record.ClientID, payloadDelta: e.Delta}
}

func (e LevelDecreased) Payload() map[string]any {
	return map[string]any{payloadClientID: e.Record.ClientID, payloadDelta: e.Delta}
}

func (e MoodImproved) Payload() map[string]any {
	return map[string]any{payloadClientID: e.Record.ClientID, payloadFrom: e.PreviousMood, payloadTo: e.NewMood}
}

func (e MoodWorsened) Payload() map[string]any {
	return map[string]any{payloadClientID: e.Record.ClientID, payloadFrom: e.PreviousMood, payloadTo: e.NewMood}
}

func (e RiskFlagRaised) Payload() map[string]any {
	return map[string]any{payloadClientID: e.Record.ClientID}
}

func (e RiskFlagCleared) Payload() map[string]any {
	return map[string]any{payloadClientID: e.Record.ClientID}
}

// Check rejects events the applier cannot act on: nil, foreign
// implementations, inconsistent or out-of-range transitions and subjects
// that fail record validation.
func Check(e Event) error {
	switch ev := e.(type) {
	case nil:
		return ErrMalformedEvent
	case LevelIncreased:
		if ev.NewLevel <= ev.PreviousLevel || ev.Delta != ev.NewLevel-ev.PreviousLevel {
			return malformed(ev, "inconsistent level change")
		}
		if err := checkLevels(ev, ev.PreviousLevel, ev.NewLevel); err != nil {
			return err
		}
	case LevelDecreased:
		if ev.NewLevel >= ev.PreviousLevel || ev.Delta != ev.PreviousLevel-ev.NewLevel {
			return malformed(ev, "inconsistent level change")
		}
		if err := checkLevels(ev, ev.PreviousLevel, ev.NewLevel); err != nil {
			return err
		}
	case MoodImproved:
		if ev.NewMood <= ev.PreviousMood {
			return malformed(ev, "inconsistent mood change")
		}
		if err := checkMoods(ev, ev.PreviousMood, ev.NewMood); err != nil {
			return err
		}
	case MoodWorsened:
		if ev.NewMood >= ev.PreviousMood {
			return malformed(ev, "inconsistent mood change")
		}
		if err := checkMoods(ev, ev.PreviousMood, ev.NewMood); err != nil {
			return err
		}
	case RiskFlagRaised, RiskFlagCleared, RecordCreated:
	default:
		return malformed(e, "unknown event type")
	}
	r := e.Subject()
	if r.OwnerID == "" || r.ClientID == "" {
		return malformed(e, "record without identity")
	}
	if err := r.Validate(); err != nil {
		return malformed(e, err.Error())
	}
	return nil
}

// checkLevels requires both levels in range and the new one on the record.
func checkLevels(e Event, prev, next int) error {
	if prev < model.MinLevel || prev > model.MaxLevel || next < model.MinLevel || next > model.MaxLevel {
		return malformed(e, fmt.Sprintf("level %d -> %d outside %d..%d", prev, next, model.MinLevel, model.MaxLevel))
	}
	if next != e.Subject().Level {
		return malformed(e, fmt.Sprintf("new level %d differs from record level %d", next, e.Subject().Level))
	}
	return nil
}

func checkMoods(e Event, prev, next int) error {
	if prev < model.MinMood || prev > model.MaxMood || next < model.MinMood || next > model.MaxMood {
		return malformed(e, fmt.Sprintf("mood %d -> %d outside %d..%d", prev, next, model.MinMood, model.MaxMood))
	}
	if next != e.Subject().Mood {
		return malformed(e, fmt.Sprintf("new mood %d differs from record mood %d", next, e.Subject().Mood))
	}
	return nil
}
