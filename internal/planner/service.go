// Package planner is the application layer over the optimizer, anomaly and
// demand engines. It resolves seeds and tariffs, merges per-request option
// overrides onto the configured defaults, records runs and publishes
// optimization jobs.
package planner

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"aquaplan/internal/anomaly"
	"aquaplan/internal/demand"
	"aquaplan/internal/optimizer"
	"aquaplan/internal/types"
)

// RunStore persists engine runs.
type RunStore interface {
	Create(ctx context.Context, run *types.Run) error
	Get(ctx context.Context, id string) (*types.Run, error)
	Complete(ctx context.Context, id string, result json.RawMessage, duration time.Duration) error
	Fail(ctx context.Context, id string, message string, duration time.Duration) error
}

// TariffSource supplies day-ahead hourly prices.
type TariffSource interface {
	Tariffs(ctx context.Context, date time.Time) (types.Hourly, error)
}

// JobQueue hands optimization jobs to the worker.
type JobQueue interface {
	Publish(ctx context.Context, msg types.OptimizationJobMessage) error
}

// RunMetrics records the outcome of every run.
type RunMetrics interface {
	RecordRun(ctx context.Context, kind types.RunKind, status types.RunStatus, duration time.Duration)
}

// Defaults are the engine options and seed used when a request carries no
// override.
type Defaults struct {
	Optimizer optimizer.Options
	Anomaly   anomaly.Options
	Demand    demand.Options
	// Seed 0 draws a fresh seed per request.
	Seed uint64
}

// RunInfo describes a finished invocation. ID is empty when the run was not
// persisted.
type RunInfo struct {
	ID       string
	Seed     *uint64
	Duration time.Duration
	Warnings []string
}

// Service runs the engines. Store, tariff source, queue and metrics are
// optional; features that need a missing collaborator fail with
// ErrCodeFeatureNotConfigured.
type Service struct {
	defaults Defaults
	logger   *slog.Logger

	store   RunStore
	tariffs TariffSource
	queue   JobQueue
	metrics RunMetrics

	now     func() time.Time
	newSeed func() uint64
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

func WithRunStore(store RunStore) Option       { return func(s *Service) { s.store = store } }
func WithTariffSource(src TariffSource) Option { return func(s *Service) { s.tariffs = src } }
func WithJobQueue(q JobQueue) Option           { return func(s *Service) { s.queue = q } }
func WithMetrics(m RunMetrics) Option          { return func(s *Service) { s.metrics = m } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithSeedSource overrides the generator used when neither the request nor
// the defaults carry a seed.
func WithSeedSource(fn func() uint64) Option { return func(s *Service) { s.newSeed = fn } }

// NewService builds a Service around defaults.
func NewService(defaults Defaults, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
		newSeed:  rand.Uint64,
		newID:    func() string { return "run_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// JobsEnabled reports whether asynchronous optimization is available.
func (s *Service) JobsEnabled() bool {
	return s.store != nil && s.queue != nil
}

// resolveSeed picks the request seed, then the configured seed, then a fresh
// one.
func (s *Service) resolveSeed(requested *uint64) uint64 {
	switch {
	case requested != nil:
		return *requested
	case s.defaults.Seed != 0:
		return s.defaults.Seed
	default:
		return s.newSeed()
	}
}

// targetDay parses an optional YYYY-MM-DD date; empty means tomorrow (UTC).
func (s *Service) targetDay(date string) (time.Time, error) {
	if date == "" {
		y, m, d := s.now().UTC().AddDate(0, 0, 1).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRequest,
			"date must be formatted as YYYY-MM-DD", err, map[string]any{"date": date})
	}
	return t, nil
}

// resolveTariffs validates a caller-supplied curve or fetches one for day.
func (s *Service) resolveTariffs(ctx context.Context, supplied *types.Hourly, day time.Time) (types.Hourly, error) {
	if supplied != nil {
		if err := supplied.Validate(); err != nil {
			return types.Hourly{}, err
		}
		return *supplied, nil
	}
	if s.tariffs == nil {
		return types.Hourly{}, types.NewAppError(types.ErrCodeFeatureNotConfigured,
			"tariffs are required when no tariff feed is configured", nil)
	}
	return s.tariffs.Tariffs(ctx, day)
}

// execute times fn, records metrics and persists a successful result.
func execute[T any](ctx context.Context, s *Service, kind types.RunKind, seed *uint64, request any, fn func() (T, error)) (T, RunInfo, error) {
	logger := types.LoggerFromContext(ctx, s.logger)
	start := s.now()
	result, err := fn()
	info := RunInfo{Seed: seed, Duration: s.now().Sub(start)}

	if err != nil {
		s.recordRun(ctx, kind, types.RunStatusFailed, info.Duration)
		logger.InfoContext(ctx, "run rejected", "kind", kind, "error", err)
		return result, info, err
	}
	s.recordRun(ctx, kind, types.RunStatusComplete, info.Duration)

	if s.store != nil {
		id, perr := s.persist(ctx, kind, seed, request, result, info.Duration)
		if perr != nil {
			logger.WarnContext(ctx, "run not persisted", "kind", kind, "error", perr)
			info.Warnings = append(info.Warnings, "run was computed but could not be stored")
		} else {
			info.ID = id
		}
	}

	attrs := []any{"kind", kind, "run_id", info.ID, "duration_ms", info.Duration.Milliseconds()}
	if seed != nil {
		attrs = append(attrs, "seed", *seed)
	}
	logger.InfoContext(ctx, "run complete", attrs...)
	return result, info, nil
}

// persist writes a synchronous run directly as complete.
func (s *Service) persist(ctx context.Context, kind types.RunKind, seed *uint64, request, result any, d time.Duration) (string, error) {
	reqBody, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	resBody, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	completed := s.now().UTC()
	run := &types.Run{
		ID:          s.newID(),
		Kind:        kind,
		Status:      types.RunStatusComplete,
		Request:     reqBody,
		Result:      resBody,
		DurationMS:  d.Milliseconds(),
		CreatedAt:   completed,
		CompletedAt: &completed,
	}
	if seed != nil {
		run.Seed = *seed
	}
	if err := s.store.Create(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *Service) recordRun(ctx context.Context, kind types.RunKind, status types.RunStatus, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordRun(ctx, kind, status, d)
	}
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, id string) (*types.Run, error) {
	if s.store == nil {
		return nil, types.NewAppError(types.ErrCodeFeatureNotConfigured, "run storage is not configured", nil)
	}
	return s.store.Get(ctx, id)
}
