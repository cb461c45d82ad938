package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"aquaplan/internal/core"
	"aquaplan/internal/planner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

// testRunInfo is what the mocks report for every successful call.
func testRunInfo() planner.RunInfo {
	seed := uint64(7)
	return planner.RunInfo{ID: "run_test", Seed: &seed, Duration: 42 * time.Millisecond}
}

// hourlyJSON renders 24 copies of v as a JSON array.
func hourlyJSON(v float64) string {
	parts := make([]string, 24)
	for i := range parts {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

const pumpsJSON = `[{"id":"p1","rated_power_kw":75,"efficiency":0.5,"max_flow":120},{"id":"p2","rated_power_kw":75,"efficiency":0.6,"max_flow":100}]`

func scheduleBody() string {
	return `{"demand":` + hourlyJSON(80) + `,"tariffs":` + hourlyJSON(0.3) +
		`,"initial_level":60,"pumps":` + pumpsJSON + `,"seed":7}`
}

// serve routes one request through a chi router mounted at prefix.
func serve(t *testing.T, prefix string, register func(chi.Router), method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route(prefix, register)

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// envelope decodes a success response keeping data raw.
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		RunID      string   `json:"run_id"`
		Seed       *uint64  `json:"seed"`
		DurationMS int64    `json:"duration_ms"`
		Warnings   []string `json:"warnings"`
	} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response %q: %v", rec.Body.String(), err)
	}
	return resp.Error.Code
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
