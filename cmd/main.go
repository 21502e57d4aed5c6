package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/perfreport/internal/adapters/http/api"
	"github.com/okian/perfreport/internal/adapters/http/site"
	"github.com/okian/perfreport/internal/adapters/http/swagger"
	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/internal/adapters/repository"
	"github.com/okian/perfreport/internal/adapters/usagelog"
	app "github.com/okian/perfreport/internal/app"
	"github.com/okian/perfreport/internal/config"
	"github.com/okian/perfreport/internal/domain/contacts"
	"github.com/okian/perfreport/internal/domain/ratelimit"
	"github.com/okian/perfreport/internal/domain/sanitize"
	"github.com/okian/perfreport/pkg/logger"
	"github.com/okian/perfreport/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		// Use stderr since the logger may not be available
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.NewSQLiteStore(ctx, cfg.UsageDBPath, repository.WithMaxContacts(cfg.MaxContacts))
	if err != nil {
		return fmt.Errorf("failed to open usage store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			loggerInstance.Error(ctx, "closing usage store", logger.Error(err))
		}
	}()

	// Usage events go to stdout as JSON, or to a rotating file when configured.
	var sinkWriter io.Writer = os.Stdout
	if cfg.LogFile != "" {
		fw := logger.NewFileWriter(cfg.LogFile)
		defer fw.Close()
		sinkWriter = fw
	}
	usage := usagelog.New(store, usagelog.WithSink(logger.NewJSON(sinkWriter).Named("usage")))

	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.RenderQueueSize),
		app.WithRenderTimeout(cfg.RenderTimeout),
		app.WithLimits(sanitize.Limits{
			MaxRows:    cfg.MaxRows,
			MaxColumns: cfg.MaxColumns,
			MaxBytes:   cfg.MaxUploadBytes,
		}),
		app.WithMaxCellLength(cfg.MaxCellLength),
		app.WithRateLimits(cfg.RateWindow, map[ratelimit.Action]int{
			ratelimit.ActionUpload:       cfg.UploadsPerHour,
			ratelimit.ActionSingleReport: cfg.SingleReportsPerHour,
			ratelimit.ActionTeamReport:   cfg.TeamReportsPerHour,
		}),
		app.WithSessionIdleTTL(cfg.SessionIdleTTL),
		app.WithHashSalt(cfg.HashSalt),
		app.WithUsageLog(usage),
		app.WithContacts(contacts.NewValidator(contacts.WithDNSCheck(cfg.ContactsDNSCheck)), store),
		app.WithRenderer(report.NewGenerator(report.NewChromiumRenderer(cfg.ChromePath, cfg.RenderTimeout))),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.RenderTimeout + readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loggerInstance.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		// Wait for shutdown signal or a failed sibling
		<-gctx.Done()
		loggerInstance.Info(context.WithoutCancel(gctx), "shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	loggerInstance.Info(context.Background(), "server stopped")
	return err
}

// startSystemMetricsUpdater updates runtime gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
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

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
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

// updateServiceMetrics copies service state into gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workers"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
