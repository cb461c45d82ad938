package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockSSMClient records calls and stores written parameters in memory.
type mockSSMClient struct {
	existing map[string]bool
	getErr   error
	putErr   error

	getCalls []*ssm.GetParameterInput
	putCalls []*ssm.PutParameterInput
}

func (m *mockSSMClient) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	m.getCalls = append(m.getCalls, params)
	if m.getErr != nil {
		return nil, m.getErr
	}
	path := aws.ToString(params.Name)
	if !m.existing[path] {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: params.Name, Value: aws.String("***")}}, nil
}

func (m *mockSSMClient) PutParameter(_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	m.putCalls = append(m.putCalls, params)
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &ssm.PutParameterOutput{Version: 1}, nil
}

func (m *mockSSMClient) put(path string) *ssm.PutParameterInput {
	for _, p := range m.putCalls {
		if aws.ToString(p.Name) == path {
			return p
		}
	}
	return nil
}

func newTestSSMManager(mock *mockSSMClient, env string, logs *bytes.Buffer) *SSMManager {
	if logs == nil {
		logs = &bytes.Buffer{}
	}
	return NewSSMManagerWithClient(mock, env, slog.New(slog.NewTextHandler(logs, nil)))
}

func TestSSMPath(t *testing.T) {
	tests := []struct {
		env, key, want string
	}{
		{"dev", "database/url", "/dev/aquaplan/database/url"},
		{"prod", "security/api_key_hash", "/prod/aquaplan/security/api_key_hash"},
		{"staging", "tariff_feed/url", "/staging/aquaplan/tariff_feed/url"},
	}
	for _, tt := range tests {
		got := newTestSSMManager(&mockSSMClient{}, tt.env, nil).SSMPath(tt.key)
		if got != tt.want {
			t.Errorf("SSMPath(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParameterExists(t *testing.T) {
	mock := &mockSSMClient{existing: map[string]bool{"/dev/aquaplan/database/url": true}}
	mgr := newTestSSMManager(mock, "dev", nil)

	exists, err := mgr.ParameterExists(context.Background(), "/dev/aquaplan/database/url")
	if err != nil || !exists {
		t.Fatalf("expected existing parameter, got exists=%v err=%v", exists, err)
	}

	exists, err = mgr.ParameterExists(context.Background(), "/dev/aquaplan/tariff_feed/url")
	if err != nil || exists {
		t.Fatalf("expected missing parameter, got exists=%v err=%v", exists, err)
	}

	for _, call := range mock.getCalls {
		if aws.ToBool(call.WithDecryption) {
			t.Error("existence probe must not request decryption")
		}
	}
}

func TestParameterExists_UnexpectedError(t *testing.T) {
	mock := &mockSSMClient{getErr: errors.New("AccessDeniedException")}
	mgr := newTestSSMManager(mock, "dev", nil)

	_, err := mgr.ParameterExists(context.Background(), "/dev/aquaplan/database/url")
	if err == nil || !strings.Contains(err.Error(), "AccessDeniedException") {
		t.Fatalf("expected wrapped access error, got %v", err)
	}
}

func TestPutSecret_NeverLogsValue(t *testing.T) {
	var logs bytes.Buffer
	mock := &mockSSMClient{}
	mgr := newTestSSMManager(mock, "dev", &logs)

	secret := "postgres://app:hunter2@db:5432/aquaplan"
	if err := mgr.PutSecret(context.Background(), "/dev/aquaplan/database/url", secret, false); err != nil {
		t.Fatalf("PutSecret: %v", err)
	}

	in := mock.put("/dev/aquaplan/database/url")
	if in == nil {
		t.Fatal("expected PutParameter call")
	}
	if in.Type != ssmtypes.ParameterTypeSecureString {
		t.Errorf("type = %s, want SecureString", in.Type)
	}
	if aws.ToBool(in.Overwrite) {
		t.Error("overwrite should be false")
	}
	if strings.Contains(logs.String(), "hunter2") {
		t.Error("secret value leaked into logs")
	}
}

func TestPutString_Overwrites(t *testing.T) {
	mock := &mockSSMClient{}
	mgr := newTestSSMManager(mock, "dev", nil)

	if err := mgr.PutString(context.Background(), "/dev/aquaplan/tariff_feed/url", "https://feed.example.com"); err != nil {
		t.Fatalf("PutString: %v", err)
	}
	in := mock.put("/dev/aquaplan/tariff_feed/url")
	if in == nil || in.Type != ssmtypes.ParameterTypeString || !aws.ToBool(in.Overwrite) {
		t.Fatalf("unexpected input: %+v", in)
	}
}

func TestPutParameter_Errors(t *testing.T) {
	mgr := newTestSSMManager(&mockSSMClient{}, "dev", nil)
	if err := mgr.PutSecret(context.Background(), "", "v", false); err == nil {
		t.Error("expected error for empty path")
	}
	if err := mgr.PutSecret(context.Background(), "/dev/aquaplan/x", "", false); err == nil {
		t.Error("expected error for empty value")
	}

	mock := &mockSSMClient{putErr: &ssmtypes.ParameterAlreadyExists{Message: aws.String("exists")}}
	mgr = newTestSSMManager(mock, "dev", nil)
	err := mgr.PutSecret(context.Background(), "/dev/aquaplan/x", "v", false)
	var exists *ssmtypes.ParameterAlreadyExists
	if !errors.As(err, &exists) {
		t.Errorf("expected ParameterAlreadyExists in chain, got %v", err)
	}
}
