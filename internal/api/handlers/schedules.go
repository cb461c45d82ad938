package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aquaplan/internal/core"
	"aquaplan/internal/optimizer"
	"aquaplan/internal/planner"
	"aquaplan/internal/types"
)

// ScheduleService is the part of planner.Service used for pump schedules.
type ScheduleService interface {
	Optimize(ctx context.Context, r planner.ScheduleRequest) (*optimizer.Result, planner.RunInfo, error)
	Evaluate(ctx context.Context, r planner.EvaluateRequest) (*optimizer.Result, planner.RunInfo, error)
	ParetoFront(ctx context.Context, r planner.ParetoRequest) ([]optimizer.ParetoSample, planner.RunInfo, error)
	SubmitOptimization(ctx context.Context, r planner.ScheduleRequest) (*planner.JobReceipt, error)
}

// ScheduleHandler serves /v1/schedules.
type ScheduleHandler struct {
	service   ScheduleService
	validator *core.Validator
	logger    *slog.Logger
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(svc ScheduleService, v *core.Validator, logger *slog.Logger) *ScheduleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleHandler{service: svc, validator: v, logger: logger}
}

// RegisterRoutes mounts the schedule endpoints.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/optimize", h.HandleOptimize)
	r.Post("/evaluate", h.HandleEvaluate)
	r.Post("/pareto", h.HandlePareto)
	r.Post("/jobs", h.HandleSubmitJob)
}

// HandleOptimize handles POST /v1/schedules/optimize.
func (h *ScheduleHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req planner.ScheduleRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	result, info, err := h.service.Optimize(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, result, runMeta(info))
}

// HandleEvaluate handles POST /v1/schedules/evaluate. The caller's schedule
// is scored exactly as the optimizer scores its candidates.
func (h *ScheduleHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req planner.EvaluateRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	result, info, err := h.service.Evaluate(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, result, runMeta(info))
}

// HandlePareto handles POST /v1/schedules/pareto.
func (h *ScheduleHandler) HandlePareto(w http.ResponseWriter, r *http.Request) {
	var req planner.ParetoRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	samples, info, err := h.service.ParetoFront(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, samples, runMeta(info))
}

// HandleSubmitJob handles POST /v1/schedules/jobs. The run is queued and
// 202 is returned with a Location pointing at the run resource.
func (h *ScheduleHandler) HandleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req planner.ScheduleRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	receipt, err := h.service.SubmitOptimization(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	seed := receipt.Seed
	w.Header().Set("Location", "/v1/runs/"+receipt.RunID)
	core.Respond(w, r, http.StatusAccepted, receipt, &types.ResponseMeta{RunID: receipt.RunID, Seed: &seed})
}
