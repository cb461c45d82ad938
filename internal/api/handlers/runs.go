package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aquaplan/internal/core"
	"aquaplan/internal/types"
)

// runIDPrefix marks ids issued by the planner ("run_" + uuid).
const runIDPrefix = "run_"

// RunService reads stored runs.
type RunService interface {
	GetRun(ctx context.Context, id string) (*types.Run, error)
}

// RunHandler serves /v1/runs.
type RunHandler struct {
	service RunService
	logger  *slog.Logger
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(svc RunService, logger *slog.Logger) *RunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{service: svc, logger: logger}
}

// RegisterRoutes mounts the run endpoints.
func (h *RunHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.HandleGet)
}

// HandleGet handles GET /v1/runs/{id}. Queued jobs are returned without a
// result; failed jobs carry the error text.
func (h *RunHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !strings.HasPrefix(id, runIDPrefix) || len(id) > 64 {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundRun,
			"run not found", nil, map[string]any{"run_id": id}))
		return
	}

	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: run})
}
