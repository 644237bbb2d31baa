// Command server starts the resume scoring HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/resume-scorer/internal/adapter/cache"
	"github.com/fairyhunter13/resume-scorer/internal/adapter/events"
	"github.com/fairyhunter13/resume-scorer/internal/adapter/fork"
	httpserver "github.com/fairyhunter13/resume-scorer/internal/adapter/httpserver"
	"github.com/fairyhunter13/resume-scorer/internal/adapter/observability"
	"github.com/fairyhunter13/resume-scorer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/resume-scorer/internal/app"
	"github.com/fairyhunter13/resume-scorer/internal/config"
	"github.com/fairyhunter13/resume-scorer/internal/domain"
	"github.com/fairyhunter13/resume-scorer/internal/scorer"
	"github.com/fairyhunter13/resume-scorer/internal/usecase"
)

// redisAdapter adapts *redis.Client to the readiness check interface.
type redisAdapter struct{ c *redis.Client }

func (a redisAdapter) Ping(ctx context.Context) app.RedisPingResult { return a.c.Ping(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, worker, and fork instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Infra: DB pool
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Repositories
	var resumes domain.ResumeRepository = postgres.NewResumeRepo(pool)
	var jobs domain.JobRepository = postgres.NewJobRepo(pool)
	ledger := postgres.NewForkLedgerRepo(pool)
	resultsRepo := postgres.NewWorkerResultRepo(pool)
	compositeRepo := postgres.NewCompositeRepo(pool)

	// Optional read-through cache in front of the fixture repositories.
	var rdb *redis.Client
	if cfg.CacheEnabled() {
		rdb, err = cache.NewClient(cfg.RedisURL)
		if err != nil {
			slog.Error("redis connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		resumes = cache.NewResumeCache(resumes, rdb, cfg.CacheTTL)
		jobs = cache.NewJobCache(jobs, rdb, cfg.CacheTTL)
		slog.Info("read-through cache enabled", slog.Duration("ttl", cfg.CacheTTL))
	}

	// Fork provisioning. The sweeper prunes terminal ledger rows in the
	// background.
	branch := fork.NewBranchClient(cfg.ForkBranchAPIURL, cfg.ForkBranchAPIToken)
	opener := postgres.NewSessionOpener()
	forks := fork.NewManager(ledger, opener, branch, cfg.DBURL, cfg.MaxActiveForks)
	sweeper := postgres.NewForkSweeper(ledger, cfg.ForkRetention)
	go sweeper.RunPeriodic(ctx, cfg.ForkSweepInterval)

	// Optional audit event producer.
	var publisher domain.EventPublisher
	if cfg.EventsEnabled() {
		p, err := events.NewPublisher(cfg.KafkaBrokers, cfg.ScoreEventTopic)
		if err != nil {
			slog.Error("event producer connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := p.Close(); err != nil {
				slog.Error("failed to close event producer", slog.Any("error", err))
			}
		}()
		publisher = p
	}

	// Weight profiles and catalogs.
	catalog := scorer.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = scorer.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			slog.Error("catalog load failed", slog.Any("error", err), slog.String("path", cfg.CatalogPath))
			os.Exit(1)
		}
	}
	registry := scorer.NewRegistry(catalog)

	// Usecases
	scoreSvc := usecase.NewScoreService(resumes, jobs, forks, opener, resultsRepo, compositeRepo, publisher, registry)
	scoreSvc.WorkerTimeout = cfg.WorkerTimeout
	scoreSvc.AcquireTimeout = cfg.ForkAcquireTimeout
	scoreSvc.SkillHint = cfg.SemanticSkillHint
	resultSvc := usecase.NewResultService(compositeRepo)

	// Readiness checks
	var redisClient app.RedisClient
	if rdb != nil {
		redisClient = redisAdapter{rdb}
	}
	dbCheck, redisCheck := app.BuildReadinessChecks(pool, redisClient)

	// HTTP server
	srv := httpserver.NewServer(cfg, scoreSvc, resultSvc, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
