package apply_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/gestor/internal/domain/apply"
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/model"
	"github.com/okian/gestor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeStore records every call in order and fails on demand.
type fakeStore struct {
	calls      []string
	failCreate map[string]bool
	failUpdate map[string]bool
	failNotify map[string]bool
	onCall     func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{failCreate: map[string]bool{}, failUpdate: map[string]bool{}, failNotify: map[string]bool{}}
}

func (f *fakeStore) Create(_ context.Context, rec model.ClientRecord) (string, error) {
	f.calls = append(f.calls, "create:"+rec.ClientID)
	if f.onCall != nil {
		f.onCall()
	}
	if f.failCreate[rec.ClientID] {
		return "", errors.New("duplicate document")
	}
	return "doc-" + rec.ClientID, nil
}

func (f *fakeStore) Update(_ context.Context, rec model.ClientRecord) error {
	f.calls = append(f.calls, "update:"+rec.ClientID)
	if f.onCall != nil {
		f.onCall()
	}
	if f.failUpdate[rec.ClientID] {
		return errors.New("503 service unavailable")
	}
	return nil
}

func (f *fakeStore) Notify(_ context.Context, signalID string, payload map[string]any) error {
	f.calls = append(f.calls, fmt.Sprintf("notify:%s:%v", signalID, payload["cliente_id"]))
	if f.onCall != nil {
		f.onCall()
	}
	if f.failNotify[signalID] {
		return errors.New("action rejected")
	}
	return nil
}

func rec(client string) model.ClientRecord {
	return model.ClientRecord{OwnerID: "p1", ClientID: client, Level: 5, Mood: 2, StorageKey: "k-" + client}
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	Convey("Given a batch touching several records", t, func() {
		store := newFakeStore()
		events := []change.Event{
			change.LevelIncreased{Record: rec("c1"), PreviousLevel: 4, NewLevel: 5, Delta: 1},
			change.RiskFlagRaised{Record: rec("c1")},
			change.RecordCreated{Record: rec("c2")},
			change.MoodWorsened{Record: rec("c3"), PreviousMood: 3, NewMood: 2},
		}

		Convey("When every call succeeds", func() {
			out, err := apply.New(store).Apply(ctx, events)

			Convey("Then everything is applied in order, creations without a signal", func() {
				So(err, ShouldBeNil)
				So(out.Applied, ShouldEqual, 4)
				So(out.Failed, ShouldEqual, 0)
				So(store.calls, ShouldResemble, []string{
					"update:c1", "notify:cliente_subiu_nivel:c1",
					"update:c1", "notify:alerta_vermelho:c1",
					"create:c2",
					"update:c3", "notify:humor_piorou:c3",
				})
				So(out.Results[2].StorageKey, ShouldEqual, "doc-c2")
				for i, r := range out.Results {
					So(r.Index, ShouldEqual, i)
					So(r.Status, ShouldEqual, apply.StatusApplied)
				}
			})
		})

		Convey("When the update of one event fails", func() {
			store.failUpdate["c1"] = true
			out, err := apply.New(store).Apply(ctx, events)

			Convey("Then its signal is never fired and later events still run", func() {
				So(err, ShouldBeNil)
				So(out.Applied, ShouldEqual, 2)
				So(out.Failed, ShouldEqual, 2)
				So(out.Applied+out.Failed, ShouldEqual, len(events))
				So(store.calls, ShouldResemble, []string{
					"update:c1", "update:c1", "create:c2", "update:c3", "notify:humor_piorou:c3",
				})
				So(out.Failures[0].Stage, ShouldEqual, apply.StageUpdate)
				So(out.Failures[0].Index, ShouldEqual, 0)
				So(out.Failures[0].Err, ShouldContainSubstring, "503")
			})
		})

		Convey("When the signal fails after a successful update", func() {
			store.failNotify["alerta_vermelho"] = true
			out, _ := apply.New(store).Apply(ctx, events)

			Convey("Then the event counts as failed at the notify stage", func() {
				So(out.Applied, ShouldEqual, 3)
				So(out.Failed, ShouldEqual, 1)
				So(out.Failures[0].Stage, ShouldEqual, apply.StageNotify)
				So(out.Failures[0].Event.Kind(), ShouldEqual, change.KindRiskFlagRaised)
				So(out.Results[1].Status, ShouldEqual, apply.StatusFailed)
			})
		})

		Convey("When a creation fails", func() {
			store.failCreate["c2"] = true
			out, _ := apply.New(store).Apply(ctx, events)
			So(out.Failed, ShouldEqual, 1)
			So(out.Failures[0].Stage, ShouldEqual, apply.StageCreate)
			So(out.Results[2].StorageKey, ShouldBeEmpty)
		})

		Convey("When signal ids are overridden", func() {
			a := apply.New(store, apply.WithSignalIDs(map[change.Kind]string{
				change.KindRiskFlagRaised: "churn_alert",
				change.KindRecordCreated:  "ignored",
			}))
			_, _ = a.Apply(ctx, events[1:2])
			So(store.calls, ShouldResemble, []string{"update:c1", "notify:churn_alert:c1"})
		})

		Convey("When progress is observed", func() {
			var seen []int
			a := apply.New(store, apply.WithProgress(func(done, total int, r apply.Result) {
				So(total, ShouldEqual, len(events))
				seen = append(seen, done)
			}))
			_, _ = a.Apply(ctx, events)
			So(seen, ShouldResemble, []int{1, 2, 3, 4})
		})

		Convey("When the context is cancelled mid-batch", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			store.onCall = func() {
				if len(store.calls) == 2 { // update + notify of the first event
					cancel()
				}
			}
			out, err := apply.New(store).Apply(cctx, events)

			Convey("Then the in-flight event finishes and the rest are skipped", func() {
				So(err, ShouldBeNil)
				So(out.Applied, ShouldEqual, 1)
				So(out.Failed, ShouldEqual, 3)
				So(store.calls, ShouldHaveLength, 2)
				for _, f := range out.Failures {
					So(f.Stage, ShouldEqual, apply.StageSkipped)
				}
			})
		})
	})

	Convey("Given a malformed event list", t, func() {
		store := newFakeStore()
		events := []change.Event{
			change.RecordCreated{Record: rec("c1")},
			change.LevelIncreased{Record: rec("c2"), PreviousLevel: 5, NewLevel: 5},
		}
		out, err := apply.New(store).Apply(ctx, events)

		Convey("Then the whole call fails before touching the store", func() {
			So(errors.Is(err, change.ErrMalformedEvent), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "event 1")
			So(store.calls, ShouldBeEmpty)
			So(out.Results, ShouldBeEmpty)
		})
	})

	Convey("Given an empty event list", t, func() {
		out, err := apply.New(newFakeStore()).Apply(ctx, nil)
		So(err, ShouldBeNil)
		So(out.Applied, ShouldEqual, 0)
		So(out.Failed, ShouldEqual, 0)
	})
}
