package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquaplan/internal/types"
)

type mockRunService struct {
	run   *types.Run
	err   error
	gotID string
	calls int
}

func (m *mockRunService) GetRun(_ context.Context, id string) (*types.Run, error) {
	m.gotID = id
	m.calls++
	return m.run, m.err
}

func TestHandleGetRun_Success(t *testing.T) {
	created := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	svc := &mockRunService{run: &types.Run{
		ID:         "run_abc",
		Kind:       types.RunKindOptimize,
		Status:     types.RunStatusComplete,
		Seed:       7,
		Result:     json.RawMessage(`{"cost":12.5}`),
		DurationMS: 150,
		CreatedAt:  created,
	}}

	rec := serve(t, "/v1/runs", NewRunHandler(svc, testLogger()).RegisterRoutes, http.MethodGet, "/v1/runs/run_abc", "")
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t, "run_abc", svc.gotID)

	var run types.Run
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &run))
	assert.Equal(t, types.RunStatusComplete, run.Status)
	assert.JSONEq(t, `{"cost":12.5}`, string(run.Result))
	assert.True(t, created.Equal(run.CreatedAt))
	assert.Nil(t, run.CompletedAt)
}

func TestHandleGetRun_MalformedIDSkipsLookup(t *testing.T) {
	svc := &mockRunService{}

	rec := serve(t, "/v1/runs", NewRunHandler(svc, testLogger()).RegisterRoutes, http.MethodGet, "/v1/runs/job_abc", "")
	assertStatus(t, rec, http.StatusNotFound)
	assert.Equal(t, string(types.ErrCodeNotFoundRun), errorCode(t, rec))
	assert.Zero(t, svc.calls)
}

func TestHandleGetRun_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   types.ErrorCode
	}{
		{"missing", types.NewAppError(types.ErrCodeNotFoundRun, "run not found", nil), http.StatusNotFound, types.ErrCodeNotFoundRun},
		{"no store", types.NewAppError(types.ErrCodeFeatureNotConfigured, "run storage is not configured", nil), http.StatusServiceUnavailable, types.ErrCodeFeatureNotConfigured},
		{"db down", types.NewAppError(types.ErrCodeInternalDB, "failed to load run", nil), http.StatusInternalServerError, types.ErrCodeInternalDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockRunService{err: tt.err}

			rec := serve(t, "/v1/runs", NewRunHandler(svc, testLogger()).RegisterRoutes, http.MethodGet, "/v1/runs/run_abc", "")
			assertStatus(t, rec, tt.status)
			assert.Equal(t, string(tt.code), errorCode(t, rec))
		})
	}
}
