package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aquaplan/internal/core"
	"aquaplan/internal/planner"
)

// PlanService runs the day-ahead pipeline.
type PlanService interface {
	Plan(ctx context.Context, r planner.PlanRequest) (*planner.PlanResult, planner.RunInfo, error)
}

// PlanHandler serves /v1/plans.
type PlanHandler struct {
	service   PlanService
	validator *core.Validator
	logger    *slog.Logger
}

// NewPlanHandler creates a PlanHandler.
func NewPlanHandler(svc PlanService, v *core.Validator, logger *slog.Logger) *PlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanHandler{service: svc, validator: v, logger: logger}
}

// RegisterRoutes mounts the plan endpoint.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCreatePlan)
}

// HandleCreatePlan handles POST /v1/plans.
func (h *PlanHandler) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planner.PlanRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	plan, info, err := h.service.Plan(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, plan, runMeta(info))
}
