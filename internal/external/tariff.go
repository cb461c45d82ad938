package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aquaplan/internal/config"
	"aquaplan/internal/security"
	"aquaplan/internal/types"
)

const tariffUserAgent = "AquaPlan/1.0"

// maxTariffRedirects caps redirects followed by the guarded client.
const maxTariffRedirects = 3

// maxTariffBody bounds the feed response.
const maxTariffBody = 64 << 10

// tariffResponse is the body of GET {base}/tariffs?date=YYYY-MM-DD.
type tariffResponse struct {
	Date     string    `json:"date"`
	Currency string    `json:"currency,omitempty"`
	Prices   []float64 `json:"prices"`
}

// TariffFeed fetches day-ahead hourly electricity prices.
type TariffFeed struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

// NewTariffFeed builds a feed client from cfg. The returned client shares
// nothing with other BaseClients. Unless cfg.AllowPrivateNetworks is set,
// connections and redirects to private ranges are refused.
func NewTariffFeed(cfg config.TariffFeedConfig, logger *slog.Logger, opts ...BaseClientOption) *TariffFeed {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if !cfg.AllowPrivateNetworks {
		httpClient = security.NewHTTPClient(cfg.Timeout, maxTariffRedirects)
	}
	base := NewBaseClient(httpClient, "tariff-feed", policy, tariffUserAgent, opts...)
	return NewTariffFeedWithBase(base, cfg, logger)
}

// NewTariffFeedWithBase uses a pre-configured BaseClient.
func NewTariffFeedWithBase(base *BaseClient, cfg config.TariffFeedConfig, logger *slog.Logger) *TariffFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &TariffFeed{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Tariffs returns the 24 hourly prices for the calendar day of date (UTC).
func (f *TariffFeed) Tariffs(ctx context.Context, date time.Time) (types.Hourly, error) {
	day := date.UTC().Format(time.DateOnly)
	endpoint := fmt.Sprintf("%s/tariffs?%s", f.baseURL, url.Values{"date": {day}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.Hourly{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create tariff request", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+f.apiKey.Unmask())
	}

	start := time.Now()
	resp, err := f.base.Do(req)
	if err != nil {
		f.logger.WarnContext(ctx, "tariff feed request failed", "date", day, "error", err)
		return types.Hourly{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The upstream body is logged, never returned to callers.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		f.logger.WarnContext(ctx, "tariff feed rejected request",
			"date", day,
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return types.Hourly{}, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamTariffFeed,
			fmt.Sprintf("tariff feed returned %d", resp.StatusCode),
			nil,
			map[string]any{"date": day, "status": resp.StatusCode},
		)
	}

	var body tariffResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTariffBody)).Decode(&body); err != nil {
		return types.Hourly{}, types.NewAppError(types.ErrCodeUpstreamTariffFeed, "failed to decode tariff feed response", err)
	}

	tariffs, err := types.NewHourly(body.Prices)
	if err != nil {
		return types.Hourly{}, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamTariffFeed,
			"tariff feed returned an invalid price curve",
			err,
			map[string]any{"date": day},
		)
	}

	f.logger.DebugContext(ctx, "tariffs fetched",
		"date", day,
		"currency", body.Currency,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return tariffs, nil
}
