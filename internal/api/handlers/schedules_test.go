package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquaplan/internal/optimizer"
	"aquaplan/internal/planner"
	"aquaplan/internal/types"
)

type mockScheduleService struct {
	optimizeResult *optimizer.Result
	paretoResult   []optimizer.ParetoSample
	receipt        *planner.JobReceipt
	err            error

	gotSchedule planner.ScheduleRequest
	gotEvaluate planner.EvaluateRequest
	gotPareto   planner.ParetoRequest
}

func (m *mockScheduleService) Optimize(_ context.Context, r planner.ScheduleRequest) (*optimizer.Result, planner.RunInfo, error) {
	m.gotSchedule = r
	return m.optimizeResult, testRunInfo(), m.err
}

func (m *mockScheduleService) Evaluate(_ context.Context, r planner.EvaluateRequest) (*optimizer.Result, planner.RunInfo, error) {
	m.gotEvaluate = r
	return m.optimizeResult, testRunInfo(), m.err
}

func (m *mockScheduleService) ParetoFront(_ context.Context, r planner.ParetoRequest) ([]optimizer.ParetoSample, planner.RunInfo, error) {
	m.gotPareto = r
	return m.paretoResult, testRunInfo(), m.err
}

func (m *mockScheduleService) SubmitOptimization(_ context.Context, r planner.ScheduleRequest) (*planner.JobReceipt, error) {
	m.gotSchedule = r
	return m.receipt, m.err
}

func scheduleRoutes(svc ScheduleService) func(chi.Router) {
	return NewScheduleHandler(svc, testValidator(), testLogger()).RegisterRoutes
}

func TestHandleOptimize_Success(t *testing.T) {
	svc := &mockScheduleService{optimizeResult: &optimizer.Result{Cost: 123.4, PumpHours: 9}}

	rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/optimize", scheduleBody())
	assertStatus(t, rec, http.StatusOK)

	env := decodeEnvelope(t, rec)
	var result optimizer.Result
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.InDelta(t, 123.4, result.Cost, 1e-9)
	assert.Equal(t, 9, result.PumpHours)
	assert.Equal(t, "run_test", env.Meta.RunID)
	require.NotNil(t, env.Meta.Seed)
	assert.Equal(t, uint64(7), *env.Meta.Seed)
	assert.Equal(t, int64(42), env.Meta.DurationMS)

	require.NotNil(t, svc.gotSchedule.Demand)
	assert.Equal(t, 80.0, svc.gotSchedule.Demand[5])
	assert.Len(t, svc.gotSchedule.Pumps, 2)
	assert.Equal(t, 60.0, svc.gotSchedule.InitialLevel)
}

func TestHandleOptimize_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{
			name: "missing demand",
			body: `{"pumps":` + pumpsJSON + `}`,
			code: string(types.ErrCodeValidationMissingField),
		},
		{
			name: "short demand",
			body: `{"demand":[1,2,3],"pumps":` + pumpsJSON + `}`,
			code: string(types.ErrCodeValidationHourlyLength),
		},
		{
			name: "negative tariff",
			body: strings.Replace(scheduleBody(), `"tariffs":[0.3`, `"tariffs":[-0.3`, 1),
			code: string(types.ErrCodeValidationNegativeValue),
		},
		{
			name: "no pumps",
			body: `{"demand":` + hourlyJSON(80) + `,"pumps":[]}`,
			code: string(types.ErrCodeValidationInvalidRequest),
		},
		{
			name: "level above 100",
			body: strings.Replace(scheduleBody(), `"initial_level":60`, `"initial_level":140`, 1),
			code: string(types.ErrCodeValidationInvalidRequest),
		},
		{
			name: "bad date",
			body: strings.Replace(scheduleBody(), `"seed":7`, `"date":"tomorrow"`, 1),
			code: string(types.ErrCodeValidationInvalidRequest),
		},
		{
			name: "unknown field",
			body: strings.Replace(scheduleBody(), `"seed":7`, `"sed":7`, 1),
			code: "validation_invalid_json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockScheduleService{}
			rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/optimize", tt.body)

			assertStatus(t, rec, http.StatusBadRequest)
			assert.Equal(t, tt.code, errorCode(t, rec))
			assert.Nil(t, svc.gotSchedule.Pumps, "service must not be called")
		})
	}
}

func TestHandleOptimize_ServiceErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{types.NewAppError(types.ErrCodeValidationConstraints, "min_reservoir_level must be below max_reservoir_level", nil), http.StatusBadRequest},
		{types.NewAppError(types.ErrCodeFeatureNotConfigured, "no tariff feed configured", nil), http.StatusServiceUnavailable},
		{types.NewAppError(types.ErrCodeUpstreamTariffFeed, "feed returned 500", nil), http.StatusBadGateway},
	}
	for _, tt := range tests {
		svc := &mockScheduleService{err: tt.err}
		rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/optimize", scheduleBody())
		if rec.Code != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, rec.Code)
		}
	}
}

func TestHandleEvaluate_PassesSchedule(t *testing.T) {
	svc := &mockScheduleService{optimizeResult: &optimizer.Result{Cost: 10}}
	sched := make([]string, 24)
	for i := range sched {
		sched[i] = "0"
	}
	sched[3] = "2"
	body := strings.TrimSuffix(scheduleBody(), "}") + `,"schedule":[` + strings.Join(sched, ",") + `]}`

	rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/evaluate", body)
	assertStatus(t, rec, http.StatusOK)

	require.NotNil(t, svc.gotEvaluate.Schedule)
	assert.Equal(t, 2, svc.gotEvaluate.Schedule[3])
	assert.Len(t, svc.gotEvaluate.Pumps, 2)
}

func TestHandleEvaluate_RequiresSchedule(t *testing.T) {
	svc := &mockScheduleService{}
	rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/evaluate", scheduleBody())

	assertStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorCode(t, rec))
}

func TestHandlePareto(t *testing.T) {
	svc := &mockScheduleService{paretoResult: []optimizer.ParetoSample{
		{Cost: 50, Stability: 0.9, OffPeakBias: 0},
		{Cost: 40, Stability: 0.7, OffPeakBias: 1},
	}}
	body := strings.TrimSuffix(scheduleBody(), "}") + `,"samples":2}`

	rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/pareto", body)
	assertStatus(t, rec, http.StatusOK)

	var samples []optimizer.ParetoSample
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &samples))
	assert.Len(t, samples, 2)
	assert.Equal(t, 2, svc.gotPareto.Samples)
}

func TestHandlePareto_RejectsTooManySamples(t *testing.T) {
	svc := &mockScheduleService{}
	body := strings.TrimSuffix(scheduleBody(), "}") + `,"samples":5000}`

	rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/pareto", body)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestHandleSubmitJob(t *testing.T) {
	svc := &mockScheduleService{receipt: &planner.JobReceipt{RunID: "run_job1", Status: types.RunStatusQueued, Seed: 99}}

	rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/jobs", scheduleBody())
	assertStatus(t, rec, http.StatusAccepted)
	assert.Equal(t, "/v1/runs/run_job1", rec.Header().Get("Location"))

	env := decodeEnvelope(t, rec)
	var receipt planner.JobReceipt
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, types.RunStatusQueued, receipt.Status)
	assert.Equal(t, "run_job1", env.Meta.RunID)
	require.NotNil(t, env.Meta.Seed)
	assert.Equal(t, uint64(99), *env.Meta.Seed)
}

func TestHandleSubmitJob_NotConfigured(t *testing.T) {
	svc := &mockScheduleService{err: types.NewAppError(types.ErrCodeFeatureNotConfigured, "jobs disabled", nil)}

	rec := serve(t, "/v1/schedules", scheduleRoutes(svc), http.MethodPost, "/v1/schedules/jobs", scheduleBody())
	assertStatus(t, rec, http.StatusServiceUnavailable)
	assert.Equal(t, string(types.ErrCodeFeatureNotConfigured), errorCode(t, rec))
}
