// Package main is the entrypoint for the optimizer worker Lambda.
//
// The worker consumes optimization jobs queued by POST /v1/schedules/jobs,
// runs the genetic optimizer with the job seed and completes or fails the
// stored run. Store failures are reported as partial batch failures so SQS
// redelivers only the affected messages.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"aquaplan/internal/config"
	"aquaplan/internal/db"
	"aquaplan/internal/metrics"
	"aquaplan/internal/planner"
	"aquaplan/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("optimizer worker initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.Database.Enabled() {
		logger.Error("DATABASE_URL is required by the optimizer worker")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	opts := []planner.Option{planner.WithRunStore(db.NewRunRepository(pool))}
	var lag worker.LagRecorder
	if cfg.Observability.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			logger.Error("failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		cw := metrics.NewCloudWatch(client, cfg.Observability.MetricNamespace, logger)
		opts = append(opts, planner.WithMetrics(cw))
		lag = cw
	}

	svc := planner.NewService(planner.Defaults{
		Optimizer: cfg.Engine.OptimizerOptions(),
		Anomaly:   cfg.Engine.AnomalyOptions(),
		Demand:    cfg.Engine.DemandOptions(),
		Seed:      cfg.Engine.Seed,
	}, logger, opts...)

	handler := worker.NewHandler(svc, lag, logger)

	logger.Info("optimizer worker initialized",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"metrics", cfg.Observability.EnableMetrics,
	)
	lambda.Start(handler.Handle)
}
