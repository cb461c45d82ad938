package core

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
)

// MetricsCollector records API request telemetry. metrics.CloudWatch is the
// production implementation.
type MetricsCollector interface {
	// RecordRequest is called once per request with the matched route
	// pattern as endpoint so that path parameters do not explode the
	// metric cardinality.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// HealthProbe is a subsystem check executed by GET /health.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// RouteRegistrar mounts a handler's routes on the /v1 sub-router.
type RouteRegistrar func(r chi.Router)
