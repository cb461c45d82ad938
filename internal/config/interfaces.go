package config

import "context"

// SecretProvider resolves SSM parameter paths to plaintext values. SSMProvider
// serves deployed environments; EnvVarProvider serves local runs and tests.
type SecretProvider interface {
	// GetParametersBatch returns path -> value for every path it could
	// resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
