package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ValidationResult is the outcome of checking one operator input.
type ValidationResult struct {
	Valid   bool
	Message string
}

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DatabaseConnector opens and immediately closes a connection to dsn.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector verifies a DSN with a single pgx connection.
type PgxConnector struct{}

func (c *PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// Validator checks operator input, probing the network where that is cheap.
type Validator struct {
	httpClient HTTPClient
	dbConn     DatabaseConnector
}

// NewValidator uses a 10s HTTP client and a real pgx connector.
func NewValidator() *Validator {
	return &Validator{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dbConn:     &PgxConnector{},
	}
}

// NewValidatorWithDeps injects the network dependencies.
func NewValidatorWithDeps(httpClient HTTPClient, dbConn DatabaseConnector) *Validator {
	return &Validator{httpClient: httpClient, dbConn: dbConn}
}

// validateTimeout bounds each active probe, including DNS and TLS.
const validateTimeout = 15 * time.Second

// ValidateDatabaseURL checks that rawURL is a postgres DSN with a host and
// that a connection can be opened with it. The run store creates its own
// table on startup, so no schema check is made here.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ValidationResult{Message: "database URL must not be empty"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return ValidationResult{Message: fmt.Sprintf("expected postgres:// or postgresql:// scheme, got %q", parsed.Scheme)}
	}
	if parsed.Hostname() == "" {
		return ValidationResult{Message: "database URL has no host"}
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return ValidationResult{Message: "database URL has no user"}
	}

	connCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	if err := v.dbConn.Connect(connCtx, rawURL); err != nil {
		return ValidationResult{Message: fmt.Sprintf("connection failed: %v", err)}
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("database connection verified (host=%s)", parsed.Hostname()),
	}
}

// ValidateTariffFeedURL checks the scheme and that the feed host answers.
// Any status below 500 counts as reachable since the feed requires an API
// key the operator may not have entered yet.
func (v *Validator) ValidateTariffFeedURL(ctx context.Context, rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ValidationResult{Message: "tariff feed URL must be an absolute URL"}
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return ValidationResult{Message: fmt.Sprintf("expected http or https scheme, got %q", parsed.Scheme)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("tariff feed unreachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ValidationResult{Message: fmt.Sprintf("tariff feed returned %d: %s", resp.StatusCode, truncateBody(body, 200))}
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("tariff feed reachable (status=%d)", resp.StatusCode),
	}
}

// ValidateRegex checks input against pattern.
func (v *Validator) ValidateRegex(_ context.Context, input, pattern, fieldName string) ValidationResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return ValidationResult{Message: fmt.Sprintf("%s must not be empty", fieldName)}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("internal error: invalid pattern for %s: %v", fieldName, err)}
	}
	if !re.MatchString(input) {
		return ValidationResult{Message: fmt.Sprintf("%s does not match the expected format", fieldName)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%s format valid", fieldName)}
}

func truncateBody(body []byte, n int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
