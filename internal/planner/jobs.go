package planner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"aquaplan/internal/optimizer"
	"aquaplan/internal/rng"
	"aquaplan/internal/types"
)

// JobReceipt acknowledges a queued optimization.
type JobReceipt struct {
	RunID  string          `json:"run_id"`
	Status types.RunStatus `json:"status"`
	Seed   uint64          `json:"seed"`
}

// SubmitOptimization validates r, records a queued run and publishes the job.
// Invalid requests are rejected here rather than by the worker.
func (s *Service) SubmitOptimization(ctx context.Context, r ScheduleRequest) (*JobReceipt, error) {
	if !s.JobsEnabled() {
		return nil, types.NewAppError(types.ErrCodeFeatureNotConfigured,
			"asynchronous optimization requires a database and a job queue", nil)
	}
	logger := types.LoggerFromContext(ctx, s.logger)

	seed := s.resolveSeed(r.Seed)
	r.Seed = &seed
	req, err := s.optimizerRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	r.Tariffs = &req.Tariffs
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts, err := s.optimizerOptions(r.Options)
	if err != nil {
		return nil, err
	}

	optsBody, err := json.Marshal(opts)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode options", err)
	}
	reqBody, err := json.Marshal(r)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode request", err)
	}

	run := &types.Run{
		ID:        s.newID(),
		Kind:      types.RunKindOptimize,
		Status:    types.RunStatusQueued,
		Seed:      seed,
		Request:   reqBody,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, run); err != nil {
		return nil, err
	}

	traceID := types.GetRequestID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	msg := types.OptimizationJobMessage{
		RunID:        run.ID,
		TraceID:      traceID,
		Seed:         seed,
		Demand:       req.Demand,
		Tariffs:      req.Tariffs,
		InitialLevel: req.InitialLevel,
		Pumps:        req.Pumps,
		Constraints:  req.Constraints,
		Options:      optsBody,
	}
	if err := s.queue.Publish(ctx, msg); err != nil {
		if ferr := s.store.Fail(ctx, run.ID, "enqueue failed: "+err.Error(), 0); ferr != nil {
			logger.ErrorContext(ctx, "failed to mark unqueued run as failed", "run_id", run.ID, "error", ferr)
		}
		return nil, err
	}

	logger.InfoContext(ctx, "optimization job queued", "run_id", run.ID, "seed", seed)
	return &JobReceipt{RunID: run.ID, Status: types.RunStatusQueued, Seed: seed}, nil
}

// ProcessJob runs a queued optimization and finishes its run row. Engine
// errors fail the run and return nil since a redelivery cannot succeed;
// store errors are returned so the message is retried.
func (s *Service) ProcessJob(ctx context.Context, msg types.OptimizationJobMessage) error {
	if s.store == nil {
		return types.NewAppError(types.ErrCodeFeatureNotConfigured, "run storage is not configured", nil)
	}
	logger := types.LoggerFromContext(ctx, s.logger).With("run_id", msg.RunID, "trace_id", msg.TraceID)

	start := s.now()
	result, err := s.runJob(msg)
	d := s.now().Sub(start)

	if err != nil {
		s.recordRun(ctx, types.RunKindOptimize, types.RunStatusFailed, d)
		logger.WarnContext(ctx, "optimization job failed", "error", err)
		return s.finishJob(ctx, logger, s.store.Fail(ctx, msg.RunID, err.Error(), d))
	}

	body, err := json.Marshal(result)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode result", err)
	}
	s.recordRun(ctx, types.RunKindOptimize, types.RunStatusComplete, d)
	logger.InfoContext(ctx, "optimization job complete", "cost", result.Cost, "duration_ms", d.Milliseconds())
	return s.finishJob(ctx, logger, s.store.Complete(ctx, msg.RunID, body, d))
}

func (s *Service) runJob(msg types.OptimizationJobMessage) (*optimizer.Result, error) {
	opts, err := s.optimizerOptions(msg.Options)
	if err != nil {
		return nil, err
	}
	req := optimizer.Request{
		Demand:       msg.Demand,
		Tariffs:      msg.Tariffs,
		InitialLevel: msg.InitialLevel,
		Pumps:        msg.Pumps,
		Constraints:  msg.Constraints,
	}
	return optimizer.Optimize(req, opts, rng.New(msg.Seed))
}

// finishJob drops redeliveries for runs that are already finished.
func (s *Service) finishJob(ctx context.Context, logger *slog.Logger, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundRun {
		logger.InfoContext(ctx, "run already finished; dropping redelivery")
		return nil
	}
	return err
}
