package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/maidige/consultation-admin/internal/api"
	"github.com/maidige/consultation-admin/internal/api/debug"
	"github.com/maidige/consultation-admin/internal/api/health"
	app "github.com/maidige/consultation-admin/internal/app/reporting"
	"github.com/maidige/consultation-admin/internal/config"
	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/internal/infra/consultapi"
	"github.com/maidige/consultation-admin/internal/infra/notify"
	"github.com/maidige/consultation-admin/internal/infra/session"
	"github.com/maidige/consultation-admin/internal/infra/storage"
	"github.com/maidige/consultation-admin/internal/infra/storage/reporting/memory"
	"github.com/maidige/consultation-admin/internal/infra/storage/reporting/postgres"
	"github.com/maidige/consultation-admin/pkg/common/logger"
	"github.com/maidige/consultation-admin/pkg/common/otel"
)

var build = "develop"

const serviceType = "reportwatch"

// tokenEnv overrides the stored session token, for deployments without a
// consultadm login on the host.
const tokenEnv = config.EnvPrefix + "_API_TOKEN"

func main() {
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("REPORTWATCH-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"app":      serviceType,
		"build":    build,
	}

	level := logger.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = logger.ParseLevel(v)
	}
	log := logger.NewWithMetadata(os.Stdout, level, svcName, traceIDFn, logEvents, metadata)

	ctx := context.Background()

	if err := run(ctx, log, hostname); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, hostname string) error {
	// -------------------------------------------------------------------------
	// GOMAXPROCS
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// -------------------------------------------------------------------------
	// Start Tracing Support
	var (
		tp trace.TracerProvider = tracenoop.NewTracerProvider()
		mp metric.MeterProvider
	)
	if !cfg.Telemetry.Enabled() {
		local := otel.NewLocalMeterProvider(cfg.Telemetry.ServiceName)
		defer func() { _ = local.Shutdown(context.WithoutCancel(ctx)) }()
		mp = local
	} else {
		log.Info(ctx, "startup", "status", "initializing tracing support", "endpoint", cfg.Telemetry.Endpoint)

		var teardown func(context.Context)
		tp, mp, teardown, err = otel.InitTelemetry(log, otel.Config{
			ServiceName:      cfg.Telemetry.ServiceName,
			ExporterEndpoint: cfg.Telemetry.Endpoint,
			ExcludedRoutes: map[string]struct{}{
				"/v1/health":    {},
				"/v1/readiness": {},
				"/debug":        {},
			},
			Probability: cfg.Telemetry.Probability,
			ResourceAttributes: map[string]string{
				"library.language": "go",
				"host.name":        hostname,
				"service.version":  build,
			},
			InsecureExporter: cfg.Telemetry.Insecure,
		})
		if err != nil {
			return fmt.Errorf("starting tracing: %w", err)
		}
		defer teardown(context.WithoutCancel(ctx))
	}
	tracer := tp.Tracer(cfg.Telemetry.ServiceName)

	// -------------------------------------------------------------------------
	// Start Debug Service
	if cfg.Server.DebugHost != "" {
		go func() {
			log.Info(ctx, "startup", "status", "debug router started", "host", cfg.Server.DebugHost)

			if err := http.ListenAndServe(cfg.Server.DebugHost, debug.Mux()); err != nil {
				log.Error(ctx, "shutdown", "status", "debug router closed", "host", cfg.Server.DebugHost, "msg", err)
			}
		}()
	}

	// -------------------------------------------------------------------------
	// Report Run History
	var (
		runs     domain.RunRecorder
		checkers []health.Checker
	)
	if cfg.Postgres.Enabled() {
		log.Info(ctx, "startup", "status", "connecting to postgres")

		pool, err := storage.OpenPool(ctx, cfg.Postgres.DSN, cfg.Postgres.ConnectWait, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := storage.Migrate(pool, cfg.Postgres.MigrationsDir); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}

		runs = postgres.NewRunStore(pool, tracer)
		checkers = append(checkers, health.CheckFunc{N: "postgres", Fn: pingPool(pool)})
	} else {
		log.Info(ctx, "startup", "status", "keeping report history in memory")
		runs = memory.NewRunStore(cfg.Polling.HistoryLimit)
	}

	// -------------------------------------------------------------------------
	// Notifications
	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if cfg.Kafka.Enabled() {
		log.Info(ctx, "startup", "status", "connecting to kafka", "brokers", cfg.Kafka.Brokers)

		kn, err := notify.ConnectKafkaNotifier(notify.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		}, log, tracer)
		if err != nil {
			return fmt.Errorf("connecting kafka notifier: %w", err)
		}
		defer kn.Close()
		notifiers = append(notifiers, kn)
	}

	// -------------------------------------------------------------------------
	// Consultation Backend
	tokens, err := tokenSource(cfg, log)
	if err != nil {
		return err
	}
	client, err := consultapi.New(cfg.API.Client(), tokens, log, tracer)
	if err != nil {
		return fmt.Errorf("creating api client: %w", err)
	}

	// -------------------------------------------------------------------------
	// Polling
	pollingMetrics, err := app.NewPollingMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating polling metrics: %w", err)
	}
	manager := app.NewPollingManager(client, notifiers, tracer, log,
		app.WithInterval(cfg.Polling.Interval),
		app.WithRunRecorder(runs),
		app.WithMetrics(pollingMetrics),
	)
	defer manager.Close()

	generator := app.NewGenerator(client, manager, tracer, log)

	// -------------------------------------------------------------------------
	// Start API Service
	log.Info(ctx, "startup", "status", "initializing API support")

	apiMetrics, err := api.NewAPIMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating metrics collector: %w", err)
	}

	server := api.NewServer(cfg.Server, log, tracer, api.Deps{
		Build:     build,
		Poller:    manager,
		Generator: generator,
		Runs:      runs,
		Checkers:  checkers,
		Metrics:   apiMetrics,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info(ctx, "shutdown", "status", "shutdown started", "active_polls", len(manager.Snapshot()))
		manager.StopAllPolling()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info(ctx, "shutdown", "status", "shutdown complete")
	return nil
}

// tokenSource prefers an explicit token and otherwise reuses the session
// stored by consultadm login.
func tokenSource(cfg *config.Config, log *logger.Logger) (consultapi.TokenSource, error) {
	if tok := os.Getenv(tokenEnv); tok != "" {
		return consultapi.StaticToken(tok), nil
	}

	store, err := session.NewStore(cfg.Session.Path, log)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if !store.IsAuthenticated() {
		log.Warn(context.Background(), "No valid session found; backend calls will be unauthenticated",
			"session_path", store.Path(), "hint", "run consultadm login or set "+tokenEnv)
	}
	return store, nil
}

func pingPool(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}
