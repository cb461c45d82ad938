package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aquaplan/internal/core"
	"aquaplan/internal/demand"
	"aquaplan/internal/planner"
)

// DemandService forecasts demand and scores past forecasts.
type DemandService interface {
	Forecast(ctx context.Context, r planner.ForecastRequest) (*demand.HourlyForecast, planner.RunInfo, error)
	Accuracy(ctx context.Context, r planner.AccuracyRequest) (demand.Accuracy, planner.RunInfo, error)
}

// DemandHandler serves /v1/demand.
type DemandHandler struct {
	service   DemandService
	validator *core.Validator
	logger    *slog.Logger
}

// NewDemandHandler creates a DemandHandler.
func NewDemandHandler(svc DemandService, v *core.Validator, logger *slog.Logger) *DemandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DemandHandler{service: svc, validator: v, logger: logger}
}

// RegisterRoutes mounts the demand endpoints.
func (h *DemandHandler) RegisterRoutes(r chi.Router) {
	r.Post("/forecast", h.HandleForecast)
	r.Post("/accuracy", h.HandleAccuracy)
}

// HandleForecast handles POST /v1/demand/forecast.
func (h *DemandHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	var req planner.ForecastRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	forecast, info, err := h.service.Forecast(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, forecast, runMeta(info))
}

// HandleAccuracy handles POST /v1/demand/accuracy. Series of different
// lengths are not an error: the metrics are zero and a warning explains why.
func (h *DemandHandler) HandleAccuracy(w http.ResponseWriter, r *http.Request) {
	var req planner.AccuracyRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	acc, info, err := h.service.Accuracy(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, acc, runMeta(info))
}
