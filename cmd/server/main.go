package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"carbonregistry/internal/app"
	"carbonregistry/internal/calculator"
	constantsService "carbonregistry/internal/constants/service"
	constantsStore "carbonregistry/internal/constants/store"
	"carbonregistry/internal/counter"
	"carbonregistry/internal/platform/config"
	"carbonregistry/internal/platform/httpserver"
	"carbonregistry/internal/platform/logger"
	"carbonregistry/internal/platform/metrics"
	"carbonregistry/internal/platform/postgres"
	"carbonregistry/internal/platform/redis"
	"carbonregistry/internal/project/publisher"
	projectService "carbonregistry/internal/project/service"
	projectStore "carbonregistry/internal/project/store"
	"carbonregistry/pkg/platform/circuit"
	"carbonregistry/pkg/requestcontext"
)

const seedActor = "system:constants-seed"

// main wires the registry's dependencies and runs the HTTP server until
// SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("registry stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	checks := map[string]app.Check{}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		checks["postgres"] = db.PingContext
	}

	allocator, closeCounter, err := buildAllocator(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeCounter()
	if h, ok := allocator.(interface{ Health(context.Context) error }); ok {
		checks["redis"] = h.Health
	}

	var (
		cStore constantsService.Store = constantsStore.NewInMemory()
		pStore projectService.Store   = projectStore.NewInMemory()
	)
	if db != nil {
		cStore = constantsStore.NewPostgres(db)
		pStore = projectStore.NewPostgres(db)
	}

	constants := constantsService.New(cStore,
		constantsService.WithLogger(log),
		constantsService.WithMetrics(m),
		constantsService.WithValidator(calculator.ValidateConstants),
	)
	if cfg.ConstantsSeedPath != "" {
		seed, err := constantsService.LoadSeed(cfg.ConstantsSeedPath)
		if err != nil {
			return err
		}
		if err := constants.ApplySeed(requestcontext.WithActor(ctx, seedActor), seed); err != nil {
			return err
		}
	}

	ledgerOpts := []projectService.Option{
		projectService.WithLogger(log),
		projectService.WithMetrics(m),
		projectService.WithProjectIDWidth(cfg.ProjectIDWidth),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := publisher.NewKafka(cfg.Kafka, publisher.WithLogger(log))
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.EnsureTopic(ctx); err != nil {
			return err
		}
		checks["kafka"] = pub.Ping
		ledgerOpts = append(ledgerOpts, projectService.WithPublisher(pub))
	}

	ledger := projectService.New(pStore, allocator, constants, buildCalculator(cfg.Calculator, log), ledgerOpts...)

	router := app.Router(app.Deps{
		Logger:    log,
		Metrics:   m,
		Gatherer:  reg,
		Ledger:    ledger,
		Constants: constants,
		Checks:    checks,
	})

	srv := httpserver.New(cfg.Addr, router)
	return httpserver.ListenAndServe(ctx, srv, cfg.ShutdownTimeout, log)
}

type rangeAllocator interface {
	Allocate(ctx context.Context, name counter.Name, count int64) (int64, error)
}

func buildAllocator(ctx context.Context, cfg config.Server, db *sql.DB) (rangeAllocator, func(), error) {
	noop := func() {}
	switch cfg.CounterBackend {
	case config.CounterBackendPostgres:
		return counter.NewPostgres(db), noop, nil
	case config.CounterBackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return &redisAllocator{RedisStore: counter.NewRedis(client.Client), client: client}, func() { _ = client.Close() }, nil
	default:
		return counter.NewInMemory(), noop, nil
	}
}

// redisAllocator exposes the client's health check next to the counter.
type redisAllocator struct {
	*counter.RedisStore
	client *redis.Client
}

func (a *redisAllocator) Health(ctx context.Context) error { return a.client.Health(ctx) }

var errCalculatorUnconfigured = errors.New("CALCULATOR_URL is not set")

func buildCalculator(cfg config.CalculatorConfig, log *slog.Logger) calculator.Calculator {
	if cfg.URL == "" {
		log.Warn("no calculator configured; project creation will fail")
		return calculator.Func(func(context.Context, calculator.Request) (int64, error) {
			return 0, errCalculatorUnconfigured
		})
	}
	breaker := circuit.New("calculator",
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithCooldown(cfg.Cooldown),
	)
	return calculator.NewHTTPClient(cfg.URL, cfg.Timeout,
		calculator.WithBreaker(breaker),
		calculator.WithLogger(log),
	)
}
