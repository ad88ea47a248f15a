package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	jwttoken "ftledger/internal/jwt_token"
	"ftledger/internal/platform/config"
	"ftledger/internal/platform/httpserver"
	"ftledger/internal/platform/kafka"
	"ftledger/internal/platform/logger"
	platformmetrics "ftledger/internal/platform/metrics"
	"ftledger/internal/ratelimit"
	"ftledger/internal/token/consumer"
	"ftledger/internal/token/handler"
	"ftledger/internal/token/metrics"
	"ftledger/internal/token/service"
	"ftledger/internal/token/sweeper"
	"ftledger/pkg/platform/httputil"
	"ftledger/pkg/platform/middleware/auth"
	"ftledger/pkg/platform/middleware/metadata"
	"ftledger/pkg/platform/middleware/request"
	"ftledger/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies and owns the process lifecycle.
// Ledger semantics live in internal/token.
func main() {
	if err := run(); err != nil {
		slog.Error("ftledger stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokenMetrics := metrics.New(prometheus.DefaultRegisterer)
	httpMetrics := platformmetrics.New(prometheus.DefaultRegisterer)

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	boot, err := loadState(ctx, cfg, infra.store, log)
	if err != nil {
		return err
	}

	dispatcher, err := service.New(boot.state,
		service.WithLogger(log),
		service.WithMetrics(tokenMetrics),
		service.WithVersion(boot.version),
	)
	if err != nil {
		return err
	}

	var (
		runner      *kafka.Runner
		checkpoints *kafka.Checkpoints
	)
	if cfg.Kafka.Enabled() {
		var closeKafka func()
		runner, checkpoints, closeKafka, err = startKafka(ctx, cfg.Kafka, dispatcher, infra.store != nil, log)
		if err != nil {
			return err
		}
		defer closeKafka()
	}

	sweepOpts := []sweeper.Option{sweeper.WithLogger(log), sweeper.WithMetrics(tokenMetrics)}
	if infra.store != nil {
		sweepOpts = append(sweepOpts, sweeper.WithStore(infra.store, cfg.Snapshot.Backend))
	}
	if boot.restored {
		sweepOpts = append(sweepOpts, sweeper.WithSavedVersion(boot.version))
	}
	if checkpoints != nil {
		sweepOpts = append(sweepOpts, sweeper.WithOnSaved(func(ctx context.Context, version uint64) {
			n, err := checkpoints.Release(ctx, version)
			if err != nil {
				log.ErrorContext(ctx, "offset commit failed", "version", version, "error", err)
				return
			}
			if n > 0 {
				log.DebugContext(ctx, "offsets committed", "records", n, "version", version)
			}
		}))
	}
	sw, err := sweeper.New(dispatcher, sweepOpts...)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recover(log))
	r.Use(requesttime.Middleware)
	r.Use(httpMetrics.Middleware)
	r.Get("/healthz", healthz(infra))
	r.Handle("/metrics", platformmetrics.Handler(prometheus.DefaultGatherer))
	requireAuth := auth.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), log)
	limiter := ratelimit.New(infra.limitStore(), cfg.Limits.Actions, cfg.Limits.Window, log)
	handler.New(dispatcher, log).Register(r, func(next http.Handler) http.Handler {
		return requireAuth(limiter.Limit(next))
	})

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting ftledger", "addr", cfg.Server.Addr, "version", boot.version)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return sw.Run(gctx, cfg.Sweep.Schedule, cfg.Server.ShutdownTimeout)
	})
	if runner != nil {
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}

	return g.Wait()
}

// startKafka builds the action runner. With a snapshot store, offsets are
// committed by the sweeper once the state they produced is saved; without
// one there is nothing to recover and records are committed as processed.
func startKafka(ctx context.Context, cfg config.Kafka, dispatcher *service.Dispatcher, durable bool, log *slog.Logger) (*kafka.Runner, *kafka.Checkpoints, func(), error) {
	producer, err := kafka.NewProducerClient(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := kafka.EnsureTopics(ctx, producer, cfg.Partitions, cfg.Replication, cfg.ActionsTopic, cfg.RepliesTopic); err != nil {
		producer.Close()
		return nil, nil, nil, err
	}
	c, err := consumer.New(dispatcher, kafka.NewPublisher(producer, cfg.RepliesTopic), consumer.WithLogger(log))
	if err != nil {
		producer.Close()
		return nil, nil, nil, err
	}
	client, err := kafka.NewConsumerClient(cfg)
	if err != nil {
		producer.Close()
		return nil, nil, nil, err
	}

	var (
		opts        []kafka.RunnerOption
		checkpoints *kafka.Checkpoints
	)
	if durable {
		checkpoints = kafka.NewCheckpoints(client.CommitRecords)
		opts = append(opts, kafka.WithCheckpoints(checkpoints, dispatcher.Version))
	}
	log.Info("consuming actions",
		"topic", cfg.ActionsTopic,
		"replies", cfg.RepliesTopic,
		"brokers", cfg.Brokers,
		"commit_on_snapshot", durable,
	)
	return kafka.NewRunner(client, c.Process, log, opts...), checkpoints, func() {
		client.Close()
		producer.Close()
	}, nil
}

func healthz(infra *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := infra.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
