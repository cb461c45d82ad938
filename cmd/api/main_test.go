package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquaplan/internal/config"
	"aquaplan/internal/core"
)

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

// buildTestServer assembles the server the way run does, with every
// optional collaborator disabled.
func buildTestServer(t *testing.T) *core.Server {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("ENGINE_SEED", "7")
	t.Setenv("ENGINE_GENERATIONS", "2")
	t.Setenv("ENGINE_POPULATION_SIZE", "8")
	t.Setenv("ENGINE_ELITE_COUNT", "2")
	for _, k := range []string{"DATABASE_URL", "API_KEY_HASH", "SQS_OPTIMIZATION_JOBS", "TARIFF_FEED_URL", "ENABLE_METRICS"} {
		unsetEnv(t, k)
	}

	cfg, err := config.LoadConfig(nil)
	require.NoError(t, err)
	require.NoError(t, cfg.RequireAPIKey())

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv, err := core.NewServer(cfg, logger)
	require.NoError(t, err)

	svc, err := buildPlanner(context.Background(), cfg, srv, logger)
	require.NoError(t, err)
	assert.False(t, svc.JobsEnabled())
	assert.Empty(t, srv.HealthProbes)

	registerHandlers(srv, svc, logger)
	require.NoError(t, srv.MountRoutes())
	return srv
}

func do(srv *core.Server, method, path, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthWithoutProbes(t *testing.T) {
	srv := buildTestServer(t)

	rec := do(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestForecastEndToEnd(t *testing.T) {
	srv := buildTestServer(t)

	rec := do(srv, http.MethodPost, "/v1/demand/forecast", `{"history":[2400,2300,2500],"day_of_week":1,"season":"wet"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env struct {
		Data struct {
			Hourly     []float64 `json:"hourly"`
			DailyTotal float64   `json:"daily_total"`
		} `json:"data"`
		Meta struct {
			Seed *uint64 `json:"seed"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Len(t, env.Data.Hourly, 24)
	assert.Greater(t, env.Data.DailyTotal, 0.0)
	require.NotNil(t, env.Meta.Seed)
	assert.Equal(t, uint64(7), *env.Meta.Seed)
}

func TestJobsAndRunsNeedCollaborators(t *testing.T) {
	srv := buildTestServer(t)

	rec := do(srv, http.MethodGet, "/v1/runs/run_missing", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(srv, http.MethodGet, "/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for level, want := range tests {
		logger := newLogger(level)
		if !logger.Enabled(ctx, want) {
			t.Errorf("%s: expected level %v enabled", level, want)
		}
		if want > slog.LevelDebug && logger.Enabled(ctx, want-1) {
			t.Errorf("%s: expected level below %v disabled", level, want)
		}
	}
}
