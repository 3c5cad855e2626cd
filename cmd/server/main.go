package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"compliance/internal/auditlog"
	audithandler "compliance/internal/auditlog/handler"
	gdprhandler "compliance/internal/gdpr/handler"
	httpapi "compliance/internal/http"
	"compliance/internal/platform/config"
	"compliance/internal/platform/httpserver"
	kafkaconsumer "compliance/internal/platform/kafka/consumer"
	"compliance/internal/platform/kafka/producer"
	"compliance/internal/platform/logger"
	"compliance/internal/platform/metrics"
	"compliance/internal/platform/postgres"
	"compliance/internal/platform/redis"
	"compliance/pkg/platform/audit"
	auditconsumer "compliance/pkg/platform/audit/consumer"
	"compliance/pkg/platform/audit/publishers/compliance"
	"compliance/pkg/platform/audit/publishers/stream"
	memorystore "compliance/pkg/platform/audit/store/memory"
	pgstore "compliance/pkg/platform/audit/store/postgres"
	redisstore "compliance/pkg/platform/audit/store/redis"
)

// main wires the audit store, the optional Kafka stream, and the HTTP
// surface, then runs them until SIGINT or SIGTERM.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("compliance service stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("compliance service stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)
	auditMetrics := compliance.NewMetrics(reg)

	store, checks, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	policy, _ := auditlog.ParseWritePolicy(cfg.Audit.WritePolicy)
	opts := []auditlog.Option{
		auditlog.WithLogger(log),
		auditlog.WithMetrics(auditMetrics),
		auditlog.WithWritePolicy(policy),
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.StreamEnabled() {
		prod, err := producer.New(cfg.Kafka.Brokers, log)
		if err != nil {
			return err
		}
		defer prod.Close()
		if err := prod.EnsureTopics(ctx, 1, 1, stream.Topics()...); err != nil {
			return err
		}
		checks["kafka"] = prod.Health

		forwarder := stream.NewForwarder(stream.NewKafkaSink(prod),
			stream.WithLogger(log),
			stream.WithMetrics(stream.NewMetrics(reg)),
			stream.WithBufferSize(cfg.Audit.StreamBuffer),
		)
		opts = append(opts, auditlog.WithStream(forwarder))
		g.Go(func() error { return forwarder.Run(gctx) })

		if cfg.Kafka.Materialize {
			importer, ok := store.(audit.Importer)
			if !ok {
				return errors.New("audit store cannot import streamed entries")
			}
			router := auditconsumer.NewRouter(log, nil)
			router.Register(stream.TopicCompliance, auditconsumer.NewComplianceHandler(importer, log))
			router.Register(stream.TopicSecurity, auditconsumer.NewSecurityHandler(importer, log))
			kc, err := kafkaconsumer.New(kafkaconsumer.Config{
				Brokers: cfg.Kafka.Brokers,
				GroupID: cfg.Kafka.ConsumerGroup,
				Topics:  router.Topics(),
			}, router, log)
			if err != nil {
				return err
			}
			defer kc.Close()
			g.Go(func() error { return kc.Run(gctx) })
		}
	}

	auditLogger := auditlog.NewLogger(store, opts...)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:   log,
		Metrics:  httpMetrics,
		Gatherer: reg,
		Handlers: []httpapi.Registrar{
			gdprhandler.New(log, httpMetrics),
			audithandler.New(auditLogger, log, httpMetrics),
		},
		HealthChecks:       checks,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g.Go(func() error {
		log.Info("starting compliance service",
			"addr", cfg.Server.Addr,
			"audit_store", cfg.Audit.Store,
			"write_policy", policy.String(),
			"stream", cfg.StreamEnabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		if err := auditLogger.Close(shutdownCtx); err != nil {
			log.Error("audit stream not fully drained", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// openStore builds the configured audit backend, its health checks and a
// release function.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Store, map[string]httpapi.HealthCheck, func(), error) {
	checks := map[string]httpapi.HealthCheck{}

	switch cfg.Audit.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		checks["postgres"] = db.PingContext
		log.Info("audit store ready", "backend", "postgres")
		return pgstore.New(db), checks, func() { _ = db.Close() }, nil

	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		checks["redis"] = client.Health
		log.Info("audit store ready", "backend", "redis")
		return redisstore.New(client.Client), checks, func() { _ = client.Close() }, nil

	default:
		store := memorystore.NewInMemoryStore()
		log.Warn("audit store is in-memory; entries are lost on restart")
		return store, checks, func() { _ = store.Close() }, nil
	}
}
