package classify_test

import (
	"testing"

	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/classify"
	"github.com/okian/gestor/internal/domain/matcher"
	"github.com/okian/gestor/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(client string, level, mood int, atRisk bool) model.ClientRecord {
	return model.ClientRecord{OwnerID: "p1", ClientID: client, Level: level, Mood: mood, AtRisk: atRisk}
}

func kinds(events []change.Event) []change.Kind {
	out := make([]change.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind()
	}
	return out
}

func TestPair(t *testing.T) {
	Convey("Given identical records", t, func() {
		r := rec("c1", 5, 2, true)
		So(classify.Pair(matcher.Pair{Baseline: r, Incoming: r}), ShouldBeEmpty)
	})

	Convey("Given every increasing level pair in the domain", t, func() {
		for prev := model.MinLevel; prev <= model.MaxLevel; prev++ {
			for next := prev + 1; next <= model.MaxLevel; next++ {
				events := classify.Pair(matcher.Pair{Baseline: rec("c1", prev, 2, false), Incoming: rec("c1", next, 2, false)})
				So(events, ShouldHaveLength, 1)
				ev, ok := events[0].(change.LevelIncreased)
				So(ok, ShouldBeTrue)
				So(ev.PreviousLevel, ShouldEqual, prev)
				So(ev.NewLevel, ShouldEqual, next)
				So(ev.Delta, ShouldEqual, next-prev)

				down := classify.Pair(matcher.Pair{Baseline: rec("c1", next, 2, false), Incoming: rec("c1", prev, 2, false)})
				So(down, ShouldHaveLength, 1)
				dev, ok := down[0].(change.LevelDecreased)
				So(ok, ShouldBeTrue)
				So(dev.Delta, ShouldEqual, next-prev)
			}
		}
	})

	Convey("Given a mood change", t, func() {
		Convey("When mood goes up", func() {
			events := classify.Pair(matcher.Pair{Baseline: rec("c1", 5, 1, false), Incoming: rec("c1", 5, 4, false)})
			So(events, ShouldResemble, []change.Event{
				change.MoodImproved{Record: rec("c1", 5, 4, false), PreviousMood: 1, NewMood: 4},
			})
		})

		Convey("When mood goes down", func() {
			events := classify.Pair(matcher.Pair{Baseline: rec("c1", 5, 3, false), Incoming: rec("c1", 5, 2, false)})
			So(kinds(events), ShouldResemble, []change.Kind{change.KindMoodWorsened})
		})
	})

	Convey("Given a risk flag change", t, func() {
		So(kinds(classify.Pair(matcher.Pair{Baseline: rec("c1", 5, 2, false), Incoming: rec("c1", 5, 2, true)})),
			ShouldResemble, []change.Kind{change.KindRiskFlagRaised})
		So(kinds(classify.Pair(matcher.Pair{Baseline: rec("c1", 5, 2, true), Incoming: rec("c1", 5, 2, false)})),
			ShouldResemble, []change.Kind{change.KindRiskFlagCleared})
	})

	Convey("Given level, mood and risk all changing", t, func() {
		events := classify.Pair(matcher.Pair{Baseline: rec("c1", 3, 4, true), Incoming: rec("c1", 6, 1, false)})

		Convey("Then exactly three independent events are produced", func() {
			So(kinds(events), ShouldResemble, []change.Kind{
				change.KindLevelIncreased, change.KindMoodWorsened, change.KindRiskFlagCleared,
			})
		})
	})

	Convey("Given an incoming record without a storage key", t, func() {
		base := rec("c1", 5, 2, false)
		base.StorageKey = "doc-1"
		events := classify.Pair(matcher.Pair{Baseline: base, Incoming: rec("c1", 6, 2, false)})

		Convey("Then the event record inherits the baseline's key", func() {
			So(events[0].Subject().StorageKey, ShouldEqual, "doc-1")
		})

		Convey("And an incoming key wins over the baseline's", func() {
			in := rec("c1", 6, 2, false)
			in.StorageKey = "doc-2"
			events := classify.Pair(matcher.Pair{Baseline: base, Incoming: in})
			So(events[0].Subject().StorageKey, ShouldEqual, "doc-2")
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given an unmatched record", t, func() {
		r := rec("c2", 3, 1, false)
		events := classify.New(r)

		Convey("Then exactly one RecordCreated carries it", func() {
			So(events, ShouldResemble, []change.Event{change.RecordCreated{Record: r}})
		})
	})
}

func TestAll(t *testing.T) {
	Convey("Given the documented scenario", t, func() {
		baseline := []model.ClientRecord{rec("c1", 5, 2, false)}
		incoming := []model.ClientRecord{rec("c1", 8, 2, true), rec("c2", 3, 1, false)}
		res, err := matcher.Match(baseline, incoming)
		So(err, ShouldBeNil)

		events, rejected := classify.All(res)

		Convey("Then three events come out in incoming order", func() {
			So(rejected, ShouldBeEmpty)
			So(kinds(events), ShouldResemble, []change.Kind{
				change.KindLevelIncreased, change.KindRiskFlagRaised, change.KindRecordCreated,
			})
			li := events[0].(change.LevelIncreased)
			So(li.PreviousLevel, ShouldEqual, 5)
			So(li.NewLevel, ShouldEqual, 8)
			So(li.Delta, ShouldEqual, 3)
			So(events[1].Subject().ClientID, ShouldEqual, "c1")
			So(events[2].Subject().ClientID, ShouldEqual, "c2")
		})
	})

	Convey("Given identical datasets", t, func() {
		data := []model.ClientRecord{rec("c1", 5, 2, false), rec("c2", 1, 4, true)}
		res, err := matcher.Match(data, data)
		So(err, ShouldBeNil)
		events, rejected := classify.All(res)
		So(events, ShouldBeEmpty)
		So(rejected, ShouldBeEmpty)
	})

	Convey("Given flags moving in opposite directions on two records", t, func() {
		baseline := []model.ClientRecord{rec("c1", 5, 2, false), rec("c2", 5, 2, true)}
		incoming := []model.ClientRecord{rec("c1", 5, 2, true), rec("c2", 5, 2, false)}
		res, _ := matcher.Match(baseline, incoming)
		events, _ := classify.All(res)

		Convey("Then each event belongs to its own record", func() {
			So(events, ShouldHaveLength, 2)
			So(events[0].Kind(), ShouldEqual, change.KindRiskFlagRaised)
			So(events[0].Subject().ClientID, ShouldEqual, "c1")
			So(events[1].Kind(), ShouldEqual, change.KindRiskFlagCleared)
			So(events[1].Subject().ClientID, ShouldEqual, "c2")
		})
	})

	Convey("Given malformed records among valid ones", t, func() {
		baseline := []model.ClientRecord{rec("c1", 5, 2, false), rec("c3", 0, 2, false)}
		incoming := []model.ClientRecord{
			rec("c1", 11, 2, false), // level out of range
			rec("c2", 2, 2, false),  // new and valid
			rec("c3", 4, 2, false),  // valid, but baseline is broken
			rec("c4", 2, 9, false),  // new, mood out of range
		}
		res, err := matcher.Match(baseline, incoming)
		So(err, ShouldBeNil)

		events, rejected := classify.All(res)

		Convey("Then the malformed ones are rejected and the rest classified", func() {
			So(kinds(events), ShouldResemble, []change.Kind{change.KindRecordCreated})
			So(events[0].Subject().ClientID, ShouldEqual, "c2")
			So(rejected, ShouldHaveLength, 3)
			So(rejected[0].Record.ClientID, ShouldEqual, "c1")
			So(rejected[1].Record.ClientID, ShouldEqual, "c3")
			So(rejected[1].Reason, ShouldStartWith, "baseline ")
			So(rejected[2].Record.ClientID, ShouldEqual, "c4")
		})
	})
}
