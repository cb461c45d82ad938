package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquaplan/internal/config"
	"aquaplan/internal/types"
)

func newTestFeed(serverURL string, apiKey string) *TariffFeed {
	cfg := config.TariffFeedConfig{URL: serverURL + "/", APIKey: types.SecretString(apiKey), Timeout: 5 * time.Second}
	base := newTestClient(RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: time.Millisecond})
	return NewTariffFeedWithBase(base, cfg, slog.Default())
}

func pricesJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%.2f", 0.1+float64(i)*0.01)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestTariffs_Success(t *testing.T) {
	var gotPath, gotDate, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDate = r.URL.Query().Get("date")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprintf(w, `{"date":%q,"currency":"KES","prices":%s}`, gotDate, pricesJSON(24))
	}))
	defer server.Close()

	feed := newTestFeed(server.URL, "feed-key")
	date := time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("EAT", 3*3600))

	tariffs, err := feed.Tariffs(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, "/tariffs", gotPath)
	assert.Equal(t, "2026-10-19", gotDate)
	assert.Equal(t, "Bearer feed-key", gotAuth)
	assert.InDelta(t, 0.10, tariffs[0], 1e-9)
	assert.InDelta(t, 0.33, tariffs[23], 1e-9)
}

func TestTariffs_NoAPIKeyOmitsAuthorization(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprintf(w, `{"prices":%s}`, pricesJSON(24))
	}))
	defer server.Close()

	_, err := newTestFeed(server.URL, "").Tariffs(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestTariffs_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    types.ErrorCode
	}{
		{
			name: "short curve",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"prices":%s}`, pricesJSON(23))
			},
			want: types.ErrCodeUpstreamTariffFeed,
		},
		{
			name: "negative price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"prices":[-1`+strings.Repeat(",0.2", 23)+`]}`)
			},
			want: types.ErrCodeUpstreamTariffFeed,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"prices":`)
			},
			want: types.ErrCodeUpstreamTariffFeed,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no prices published", http.StatusNotFound)
			},
			want: types.ErrCodeUpstreamTariffFeed,
		},
		{
			name: "upstream down",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			want: types.ErrCodeUpstreamUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestFeed(server.URL, "").Tariffs(context.Background(), time.Now())
			require.Error(t, err)
			assert.Equal(t, tt.want, appCode(t, err))
		})
	}
}

func TestNewTariffFeedAppliesConfig(t *testing.T) {
	cfg := config.TariffFeedConfig{URL: "https://tariffs.example.com/", Timeout: 2 * time.Second, MaxRetries: 5}
	feed := NewTariffFeed(cfg, nil)

	assert.Equal(t, "https://tariffs.example.com", feed.baseURL)
	assert.Equal(t, 5, feed.base.policy.MaxRetries)
	assert.Equal(t, 2*time.Second, feed.base.client.Timeout)
}

func TestNewTariffFeedGuardsPrivateNetworks(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprintf(w, `{"prices":%s}`, pricesJSON(24))
	}))
	defer server.Close()

	cfg := config.TariffFeedConfig{URL: server.URL, Timeout: 2 * time.Second, MaxRetries: 0}

	_, err := NewTariffFeed(cfg, nil).Tariffs(context.Background(), time.Now())
	require.Error(t, err, "loopback feed must be refused by default")
	assert.Equal(t, 0, calls)

	cfg.AllowPrivateNetworks = true
	tariffs, err := NewTariffFeed(cfg, nil).Tariffs(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, tariffs, 24)
	assert.Equal(t, 1, calls)
}

func TestTariffsUpstreamBodyIsLoggedNotReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal host db-7.feed.local rejected key", http.StatusNotFound)
	}))
	defer server.Close()

	var logs bytes.Buffer
	cfg := config.TariffFeedConfig{URL: server.URL, Timeout: 5 * time.Second}
	base := newTestClient(RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond})
	feed := NewTariffFeedWithBase(base, cfg, slog.New(slog.NewTextHandler(&logs, nil)))

	_, err := feed.Tariffs(context.Background(), time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC))
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamTariffFeed, appErr.Code)
	assert.NotContains(t, appErr.Details, "body")
	assert.Equal(t, http.StatusNotFound, appErr.Details["status"])
	assert.NotContains(t, appErr.Message, "db-7.feed.local")

	assert.Contains(t, logs.String(), "db-7.feed.local")
}
