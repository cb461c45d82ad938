package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type mockDBConnector struct {
	err     error
	lastDSN string
}

func (m *mockDBConnector) Connect(_ context.Context, dsn string) error {
	m.lastDSN = dsn
	return m.err
}

type mockHTTPClient struct {
	status int
	body   string
	err    error
	req    *http.Request
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader(m.body)),
	}, nil
}

func TestValidateDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		connErr error
		valid   bool
		msg     string
	}{
		{"valid", "postgres://app:pw@db.internal:5432/aquaplan", nil, true, "db.internal"},
		{"postgresql scheme", "postgresql://app:pw@db:5432/aquaplan", nil, true, "verified"},
		{"empty", "  ", nil, false, "must not be empty"},
		{"wrong scheme", "mysql://app:pw@db:3306/x", nil, false, "scheme"},
		{"no host", "postgres://app:pw@/aquaplan", nil, false, "no host"},
		{"no user", "postgres://db:5432/aquaplan", nil, false, "no user"},
		{"unreachable", "postgres://app:pw@db:5432/aquaplan", errors.New("dial tcp: timeout"), false, "connection failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockDBConnector{err: tt.connErr}
			v := NewValidatorWithDeps(nil, conn)

			res := v.ValidateDatabaseURL(context.Background(), tt.url)
			if res.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v (%s)", res.Valid, tt.valid, res.Message)
			}
			if !strings.Contains(res.Message, tt.msg) {
				t.Errorf("message %q does not contain %q", res.Message, tt.msg)
			}
		})
	}
}

func TestValidateDatabaseURL_SkipsConnectOnBadFormat(t *testing.T) {
	conn := &mockDBConnector{}
	v := NewValidatorWithDeps(nil, conn)

	v.ValidateDatabaseURL(context.Background(), "mysql://x@y/z")
	if conn.lastDSN != "" {
		t.Error("connector must not be called for malformed URLs")
	}
}

func TestValidateTariffFeedURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		client *mockHTTPClient
		valid  bool
	}{
		{"ok", "https://feed.example.com/v1", &mockHTTPClient{status: 200}, true},
		{"unauthorized still reachable", "https://feed.example.com/v1", &mockHTTPClient{status: 401}, true},
		{"server error", "https://feed.example.com/v1", &mockHTTPClient{status: 503, body: "maintenance"}, false},
		{"network error", "https://feed.example.com/v1", &mockHTTPClient{err: errors.New("no such host")}, false},
		{"relative", "/tariffs", &mockHTTPClient{status: 200}, false},
		{"ftp", "ftp://feed.example.com", &mockHTTPClient{status: 200}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidatorWithDeps(tt.client, nil)
			res := v.ValidateTariffFeedURL(context.Background(), tt.url)
			if res.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (%s)", res.Valid, tt.valid, res.Message)
			}
		})
	}
}

func TestValidateRegex(t *testing.T) {
	v := NewValidatorWithDeps(nil, nil)
	pattern := `^\S{16,}$`

	if res := v.ValidateRegex(context.Background(), "abcdefghijklmnop", pattern, "key"); !res.Valid {
		t.Errorf("expected valid: %s", res.Message)
	}
	if res := v.ValidateRegex(context.Background(), "short", pattern, "key"); res.Valid {
		t.Error("expected short key to fail")
	}
	if res := v.ValidateRegex(context.Background(), "", pattern, "key"); res.Valid || !strings.Contains(res.Message, "empty") {
		t.Errorf("expected empty failure, got %+v", res)
	}
	if res := v.ValidateRegex(context.Background(), "x", "(", "key"); res.Valid {
		t.Error("expected invalid pattern to fail")
	}
}

func TestTruncateBody(t *testing.T) {
	if got := truncateBody([]byte("  hello  "), 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := truncateBody([]byte("abcdefghij"), 4); got != "abcd..." {
		t.Errorf("got %q", got)
	}
}
