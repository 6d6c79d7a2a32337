package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating a manager with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})

			Convey("And metric names carry the prefix", func() {
				manager.changesDetected.WithLabelValues("level_increased").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_namespace_test_subsystem_prefix_changes_detected_total")
			})
		})

		Convey("When empty values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "gestor")
				So(manager.subsystem, ShouldEqual, "reconcile")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording detection metrics", func() {
			before := testutil.ToFloat64(globalManager.changesDetected.WithLabelValues("mood_improved"))
			RecordChangeDetected("mood_improved")
			RecordChangeDetected("mood_improved")

			Convey("Then the per-kind counter moves", func() {
				after := testutil.ToFloat64(globalManager.changesDetected.WithLabelValues("mood_improved"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording apply metrics", func() {
			before := testutil.ToFloat64(globalManager.eventsFailed.WithLabelValues("risk_flag_raised", "notify"))
			RecordEventFailed("risk_flag_raised", "notify")
			RecordEventApplied("record_created")

			Convey("Then the failure counter moves by stage", func() {
				after := testutil.ToFloat64(globalManager.eventsFailed.WithLabelValues("risk_flag_raised", "notify"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording a snapshot capture", func() {
			at := time.Unix(1_700_000_000, 0)
			RecordSnapshotCaptured(42, at)

			Convey("Then the snapshot gauges reflect it", func() {
				So(testutil.ToFloat64(globalManager.snapshotRecords), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.snapshotLastCapture), ShouldEqual, 1_700_000_000)
			})
		})

		Convey("When recording the remaining metrics", func() {
			So(func() {
				RecordRecordRejected()
				RecordIdentityCollision()
				RecordDiffDuration(3)
				RecordApplyBatchDuration(120)
				RecordStoreCall("update", true, 12)
				RecordStoreCall("notify", false, 30)
				UpdateSnapshotRecords(10)
				UpdatePendingReviews(2)
				RecordHTTPRequest("changes", "POST", "200")
				RecordHTTPRequestDuration("changes", "POST", "200", 4)
				RecordErrorByComponent("applier", "store_error")
				RecordErrorByType("client_error", "medium")
				RecordErrorByEndpoint("changes", "POST", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})

		Convey("When recording is disabled", func() {
			SetEnabled(false)
			defer SetEnabled(true)
			before := testutil.ToFloat64(globalManager.recordsRejected)
			RecordRecordRejected()

			Convey("Then nothing is recorded", func() {
				So(testutil.ToFloat64(globalManager.recordsRejected), ShouldEqual, before)
			})
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager rebuilt from options", t, func() {
		previous := GetRegistry()
		Configure(
			WithMetricPrefix("app"),
			WithCustomLabels(map[string]string{"region": "br"}),
			WithRefreshInterval(3*time.Second),
		)
		defer Configure()

		RecordChangeDetected("record_created")

		Convey("Then it records on a fresh registry", func() {
			So(GetRegistry(), ShouldNotEqual, previous)

			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			var found bool
			for _, f := range families {
				if f.GetName() != "gestor_reconcile_app_changes_detected_total" {
					continue
				}
				found = true
				labels := f.GetMetric()[0].GetLabel()
				So(labels, ShouldNotBeEmpty)
				pairs := map[string]string{}
				for _, l := range labels {
					pairs[l.GetName()] = l.GetValue()
				}
				So(pairs["region"], ShouldEqual, "br")
				So(pairs["kind"], ShouldEqual, "record_created")
			}
			So(found, ShouldBeTrue)
		})

		Convey("Then the refresh interval is exposed", func() {
			So(RefreshInterval(), ShouldEqual, 3*time.Second)
		})

		Convey("When configured with recording disabled", func() {
			Configure(WithMetricsEnabled(false))
			RecordChangeDetected("record_created")

			Convey("Then nothing is gathered", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				for _, f := range families {
					So(f.GetName(), ShouldNotContainSubstring, "changes_detected")
				}
			})
		})
	})

	Convey("Given the default configuration", t, func() {
		Configure()

		Convey("Then gauges refresh every ten seconds", func() {
			So(RefreshInterval(), ShouldEqual, 10*time.Second)
		})
	})
}
