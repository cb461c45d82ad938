package core

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"aquaplan/internal/types"
)

// mountedServer registers a small /v1 surface and mounts the full chain.
func mountedServer(t *testing.T, apiKey string) (*Server, *mockMetricsCollector) {
	t.Helper()
	srv := newTestServer(t)
	if apiKey != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.MinCost)
		require.NoError(t, err)
		srv.Config.Security.APIKeyHash = types.SecretString(hash)
	}
	mc := &mockMetricsCollector{}
	srv.Metrics = mc

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
			deadline, ok := r.Context().Deadline()
			JSON(w, r, http.StatusOK, map[string]any{
				"request_id":   types.GetRequestID(r.Context()),
				"has_deadline": ok && time.Until(deadline) > 0,
			})
		})
		r.Get("/big", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, map[string]string{"blob": strings.Repeat("pump ", 1000)})
		})
		r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})
	require.NoError(t, srv.MountRoutes())
	return srv, mc
}

func TestMountRoutes_HealthIsPublic(t *testing.T) {
	srv, _ := mountedServer(t, testAPIKey)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMountRoutes_V1RequiresKey(t *testing.T) {
	srv, mc := mountedServer(t, testAPIKey)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/echo", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("X-Request-Id", "req_from_client")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req_from_client", body["request_id"])
	assert.Equal(t, true, body["has_deadline"])
	assert.Equal(t, "req_from_client", rec.Header().Get("X-Request-Id"))

	require.Len(t, mc.calls, 2)
	assert.Equal(t, "/v1/echo", mc.calls[1].endpoint)
}

func TestMountRoutes_NotFoundAndMethodNotAllowed(t *testing.T) {
	srv, _ := mountedServer(t, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found_route", resp.Error.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMountRoutes_PanicIsRecovered(t *testing.T) {
	srv, _ := mountedServer(t, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_unexpected_error")
}

func TestMountRoutes_CompressesLargeResponses(t *testing.T) {
	srv, _ := mountedServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pump pump")

	// Small bodies stay plain.
	req = httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestRequestIDMiddleware_GeneratesWhenMissingOrOversized(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("a", 200))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Len(t, seen, 32)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestTimeout_Fallback(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, 5*time.Second, srv.requestTimeout())

	srv.Config.Server.RequestTimeout = 0
	assert.Equal(t, defaultRequestTimeout, srv.requestTimeout())
}
