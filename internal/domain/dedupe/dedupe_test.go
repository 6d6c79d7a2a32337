package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/gestor/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a review is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "review-1")

			Convey("Then it is new and now remembered", func() {
				So(seen, ShouldBeFalse)
				So(d.Seen(ctx, "review-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports it as seen", func() {
				So(d.SeenAndRecord(ctx, "review-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When Seen is asked about an unknown review", func() {
			So(d.Seen(ctx, "review-x"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a review is unrecorded", func() {
			d.SeenAndRecord(ctx, "review-1")
			d.Unrecord(ctx, "review-1")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "review-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("review-%d", i)), ShouldBeFalse)
		}

		Convey("When one more review arrives", func() {
			d.SeenAndRecord(ctx, "review-4")

			Convey("Then the oldest is evicted and the rest kept", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Seen(ctx, "review-1"), ShouldBeFalse)
				So(d.Seen(ctx, "review-2"), ShouldBeTrue)
				So(d.Seen(ctx, "review-4"), ShouldBeTrue)
			})
		})

		Convey("When an entry was unrecorded before its slot is reused", func() {
			d.Unrecord(ctx, "review-1")
			d.SeenAndRecord(ctx, "review-4")
			d.SeenAndRecord(ctx, "review-5")

			Convey("Then eviction skips the stale slot", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.Seen(ctx, "review-2"), ShouldBeFalse)
				So(d.Seen(ctx, "review-3"), ShouldBeTrue)
				So(d.Seen(ctx, "review-5"), ShouldBeTrue)
			})
		})

		Convey("When an unrecorded review is recorded again", func() {
			d.Unrecord(ctx, "review-1")
			d.SeenAndRecord(ctx, "review-1")
			d.SeenAndRecord(ctx, "review-4")

			Convey("Then its old slot does not evict the fresh entry", func() {
				So(d.Seen(ctx, "review-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("review-%d", i))
		}
		So(d.Size(), ShouldEqual, 1000)
		So(d.Seen(ctx, "review-0"), ShouldBeTrue)
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given concurrent confirmations of the same review", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(100))
		var fresh atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), "review-1") {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one of them wins", func() {
			So(fresh.Load(), ShouldEqual, 1)
		})
	})
}
