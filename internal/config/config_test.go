package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/gestor/internal/config"
	"github.com/okian/gestor/internal/domain/change"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.SnapshotBackend, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.RefreshSnapshotOnApply, convey.ShouldBeFalse)
			convey.So(cfg.StoreCollection, convey.ShouldEqual, "cliente_jogador")
			convey.So(cfg.StoreTimeout(), convey.ShouldEqual, 15*time.Second)
			convey.So(cfg.MaxPendingReviews, convey.ShouldEqual, 64)
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "gestor")
			convey.So(cfg.MetricsRefresh(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.ApplyTimeout(), convey.ShouldEqual, 2*time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"empty addr", func(c *config.Config) { c.Addr = " " }, "addr must not be empty"},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
		{"bad backend", func(c *config.Config) { c.SnapshotBackend = "redis" }, "snapshot_backend"},
		{"sqlite without path", func(c *config.Config) {
			c.SnapshotBackend, c.SnapshotPath = config.BackendSQLite, ""
		}, "snapshot_path"},
		{"relative database url", func(c *config.Config) { c.StoreDatabaseURL = "/v3" }, "store_database_url"},
		{"non-http action url", func(c *config.Config) { c.StoreActionURL = "ftp://x" }, "store_action_url"},
		{"zero timeout", func(c *config.Config) { c.StoreTimeoutMS = 0 }, "store_timeout_ms"},
		{"negative rate", func(c *config.Config) { c.StoreRatePerSecond = -1 }, "store_rate_per_second"},
		{"no pending reviews", func(c *config.Config) { c.MaxPendingReviews = 0 }, "max_pending_reviews"},
		{"no body", func(c *config.Config) { c.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"zero apply timeout", func(c *config.Config) { c.ApplyTimeoutMS = 0 }, "apply_timeout_ms"},
		{"zero metrics refresh", func(c *config.Config) { c.MetricsRefreshMS = 0 }, "metrics_refresh_ms"},
		{"unsorted buckets", func(c *config.Config) { c.MetricsBuckets = []float64{5, 1} }, "metrics_buckets"},
		{"signal for creation", func(c *config.Config) {
			c.SignalIDs = map[string]string{"record_created": "novo"}
		}, "not a signaling change kind"},
		{"empty signal id", func(c *config.Config) {
			c.SignalIDs = map[string]string{"mood_worsened": ""}
		}, "empty id"},
	}

	convey.Convey("Given configs with one invalid field", t, func() {
		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
			})
		}
	})

	convey.Convey("Given valid signal overrides", t, func() {
		cfg := config.New()
		cfg.SignalIDs = map[string]string{"risk_flag_raised": "churn_alert"}

		convey.So(cfg.Validate(), convey.ShouldBeNil)
		convey.So(cfg.SignalOverrides(), convey.ShouldResemble, map[change.Kind]string{
			change.KindRiskFlagRaised: "churn_alert",
		})
	})
}
