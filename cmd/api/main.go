// Package main is the entry point for the AquaPlan API server.
//
// It loads configuration, connects the optional collaborators (run store,
// job queue, tariff feed, CloudWatch), builds the planner service and serves
// the HTTP API until SIGINT or SIGTERM.
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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"aquaplan/internal/api/handlers"
	"aquaplan/internal/config"
	"aquaplan/internal/core"
	"aquaplan/internal/db"
	"aquaplan/internal/external"
	"aquaplan/internal/metrics"
	"aquaplan/internal/planner"
	"aquaplan/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("aquaplan API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx := context.Background()
	svc, err := buildPlanner(ctx, cfg, srv, logger)
	if err != nil {
		return err
	}
	registerHandlers(srv, svc, logger)

	if err := srv.MountRoutes(); err != nil {
		return fmt.Errorf("mounting routes: %w", err)
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildPlanner wires every configured collaborator into the planner service.
// Unconfigured collaborators are left out; the endpoints that need them
// answer 503.
func buildPlanner(ctx context.Context, cfg *config.Config, srv *core.Server, logger *slog.Logger) (*planner.Service, error) {
	defaults := planner.Defaults{
		Optimizer: cfg.Engine.OptimizerOptions(),
		Anomaly:   cfg.Engine.AnomalyOptions(),
		Demand:    cfg.Engine.DemandOptions(),
		Seed:      cfg.Engine.Seed,
	}
	var opts []planner.Option

	if cfg.Database.Enabled() {
		pool, err := db.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		srv.OnShutdown(pool.Close)
		if err := db.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		opts = append(opts, planner.WithRunStore(db.NewRunRepository(pool)))
		srv.HealthProbes = append(srv.HealthProbes, &core.DatabaseProbe{DB: pool})
		logger.Info("run store enabled")
	} else {
		logger.Warn("DATABASE_URL not set; runs will not be persisted")
	}

	needAWS := cfg.AWS.OptimizationQueueURL != "" || cfg.Observability.EnableMetrics
	var awsCfg aws.Config
	if needAWS {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
	}

	if cfg.AWS.OptimizationQueueURL != "" {
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		opts = append(opts, planner.WithJobQueue(queue.NewJobPublisher(client, cfg.AWS, logger)))
		logger.Info("optimization jobs enabled", "queue_url", cfg.AWS.OptimizationQueueURL)
	}

	if cfg.Observability.EnableMetrics {
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		cw := metrics.NewCloudWatch(client, cfg.Observability.MetricNamespace, logger)
		srv.Metrics = cw
		opts = append(opts, planner.WithMetrics(cw))
	}

	if cfg.TariffFeed.URL != "" {
		opts = append(opts, planner.WithTariffSource(external.NewTariffFeed(cfg.TariffFeed, logger)))
		logger.Info("tariff feed enabled", "url", cfg.TariffFeed.URL)
	}

	return planner.NewService(defaults, logger, opts...), nil
}

// registerHandlers mounts the v1 resource groups.
func registerHandlers(srv *core.Server, svc *planner.Service, logger *slog.Logger) {
	schedules := handlers.NewScheduleHandler(svc, srv.Validator, logger)
	anomalies := handlers.NewAnomalyHandler(svc, srv.Validator, logger)
	demand := handlers.NewDemandHandler(svc, srv.Validator, logger)
	plans := handlers.NewPlanHandler(svc, srv.Validator, logger)
	runs := handlers.NewRunHandler(svc, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/schedules", schedules.RegisterRoutes)
		r.Route("/anomalies", anomalies.RegisterRoutes)
		r.Route("/demand", demand.RegisterRoutes)
		r.Route("/plans", plans.RegisterRoutes)
		r.Route("/runs", runs.RegisterRoutes)
	})
}

// runHTTPServer serves until a shutdown signal or a listener error, then
// drains in-flight requests within ShutdownTimeout.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
