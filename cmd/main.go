package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/judgeboard/internal/adapters/fetcher"
	"github.com/okian/judgeboard/internal/adapters/http/api"
	"github.com/okian/judgeboard/internal/adapters/http/swagger"
	"github.com/okian/judgeboard/internal/adapters/repository"
	app "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/app/reconcile"
	"github.com/okian/judgeboard/internal/config"
	"github.com/okian/judgeboard/internal/domain/scoring"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	userAgent         = "judgeboard/1.0"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	metrics.Configure(metricsOptions(cfg)...)
	metrics.GetRegistry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "judgeboard exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("log format: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if err := a.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := a.svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// application is the wired object graph.
type application struct {
	store   repository.Store
	svc     *app.Service
	handler http.Handler
}

func (a *application) close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		logger.Get().Error(ctx, "closing store failed", logger.Error(err))
	}
}

// build wires storage, fetchers, reconciler, service and routes from cfg.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	lc := fetcher.NewLeetCode(newClient(cfg), cfg.LeetCodeBaseURL)
	cf := fetcher.NewCodeforces(newClient(cfg), cfg.CodeforcesBaseURL)

	rec := reconcile.New(store,
		reconcile.WithFetchers(lc, cf),
		reconcile.WithScorer(scoring.NewScorer(scoring.WithWeights(cfg.Scoring))),
		reconcile.WithMaxInFlight(cfg.MaxInFlight),
		reconcile.WithFetchTimeout(cfg.FetchTimeout()),
		reconcile.WithStorageTimeout(cfg.StorageTimeout()),
		reconcile.WithLogger(log.Named("reconciler")),
	)

	svc := app.New(store, rec,
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithRefreshInterval(cfg.RefreshInterval()),
		app.WithJobTimeout(2*cfg.FetchTimeout()+4*cfg.StorageTimeout()),
	)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, cfg.MaxLeaderboardLimit, log.Named("api")).Register(ctx, mux)

	return &application{store: store, svc: svc, handler: mux}, nil
}

// newClient returns a client with its own token bucket, so each judge host
// is limited independently.
func newClient(cfg *config.Config) *fetcher.Client {
	return fetcher.NewClient(
		fetcher.WithRateLimit(cfg.FetchRatePerSec, cfg.FetchBurst),
		fetcher.WithUserAgent(userAgent),
	)
}

func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithConstLabels(cfg.MetricsLabels),
		metrics.WithHistogramBuckets(cfg.MetricsLatencyBucketsMS),
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StorageDriver {
	case "memory":
		return repository.NewMemoryStore(), nil
	case "sqlite":
		s, err := repository.OpenSQLite(ctx, cfg.DatabasePath, repository.WithBusyTimeout(cfg.StorageTimeout()))
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", cfg.DatabasePath, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: storage driver %q", config.ErrInvalidConfig, cfg.StorageDriver)
}
