package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/gestor/internal/adapters/http/api"
	"github.com/okian/gestor/internal/adapters/http/swagger"
	"github.com/okian/gestor/internal/adapters/recordstore"
	"github.com/okian/gestor/internal/adapters/repository"
	app "github.com/okian/gestor/internal/app"
	"github.com/okian/gestor/internal/config"
	"github.com/okian/gestor/pkg/logger"
	"github.com/okian/gestor/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// writeTimeout covers a whole apply, which may make several record store
// calls per event.
const writeTimeout = 2 * time.Minute

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env). The log format
	// comes from it, so the logger is initialized afterwards.
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Configure(metricsOptions(cfg)...)

	loggerInstance := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "gestor stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run builds the service and serves HTTP until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	snapshots, err := openSnapshotStore(cfg)
	if err != nil {
		return err
	}

	svc := newService(cfg, log, snapshots)
	if err := svc.Start(ctx); err != nil {
		_ = snapshots.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("snapshot_backend", cfg.SnapshotBackend),
			logger.String("store_database_url", cfg.StoreDatabaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
		metrics.WithCustomLabels(cfg.MetricsLabels),
		metrics.WithHistogramBuckets(cfg.MetricsBuckets),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
	}
}

// openSnapshotStore opens the configured snapshot backend.
func openSnapshotStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.SnapshotBackend {
	case config.BackendSQLite:
		store, err := repository.OpenSQLite(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		return store, nil
	default:
		return repository.NewMemStore(), nil
	}
}

func newRecordStore(cfg *config.Config) *recordstore.Client {
	return recordstore.New(cfg.StoreDatabaseURL, cfg.StoreActionURL,
		recordstore.WithCollection(cfg.StoreCollection),
		recordstore.WithAuthorization(cfg.StoreAuthorization),
		recordstore.WithTimeout(cfg.StoreTimeout()),
		recordstore.WithRateLimit(cfg.StoreRatePerSecond, cfg.StoreBurst),
	)
}

func newService(cfg *config.Config, log logger.Logger, snapshots repository.Store) *app.Service {
	return app.New(
		app.WithLogger(log),
		app.WithSnapshotStore(snapshots),
		app.WithRecordStore(newRecordStore(cfg)),
		app.WithRefreshOnApply(cfg.RefreshSnapshotOnApply),
		app.WithAppliedHistorySize(cfg.AppliedHistorySize),
		app.WithMaxPendingReviews(cfg.MaxPendingReviews),
		app.WithSignalIDs(cfg.SignalOverrides()),
	)
}

func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	r := chi.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(svc, svc,
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
		api.WithApplyTimeout(cfg.ApplyTimeout()),
	).Register(r)
	return r
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes gauges derived from service state.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. GetStats refreshes the
// snapshot gauge itself.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if pending, ok := stats["pendingReviews"].(int); ok {
		metrics.UpdatePendingReviews(pending)
	}
}
