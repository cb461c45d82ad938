package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aquaplan/internal/anomaly"
	"aquaplan/internal/core"
	"aquaplan/internal/planner"
)

// AnomalyService scores sensor readings.
type AnomalyService interface {
	Detect(ctx context.Context, r planner.AnomalyRequest) (*anomaly.Report, planner.RunInfo, error)
}

// AnomalyHandler serves /v1/anomalies.
type AnomalyHandler struct {
	service   AnomalyService
	validator *core.Validator
	logger    *slog.Logger
}

// NewAnomalyHandler creates an AnomalyHandler.
func NewAnomalyHandler(svc AnomalyService, v *core.Validator, logger *slog.Logger) *AnomalyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnomalyHandler{service: svc, validator: v, logger: logger}
}

// RegisterRoutes mounts the anomaly endpoints.
func (h *AnomalyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/detect", h.HandleDetect)
}

// HandleDetect handles POST /v1/anomalies/detect. Fewer readings than the
// detector minimum still return 200 with every result marked normal and
// summary.insufficient_data set.
func (h *AnomalyHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	var req planner.AnomalyRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	report, info, err := h.service.Detect(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if report.Summary.Flagged > 0 {
		h.logger.InfoContext(r.Context(), "anomalies flagged",
			"flagged", report.Summary.Flagged, "total", report.Summary.Total)
	}
	core.Respond(w, r, http.StatusOK, report, runMeta(info))
}
