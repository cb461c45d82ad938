package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

const testHash = "$2a$10$abcdefghijklmnopqrstuv"

func TestSecretStringFormatting(t *testing.T) {
	s := SecretString(testHash)

	for _, verb := range []string{"%s", "%v", "%+v", "%#v"} {
		result := fmt.Sprintf(verb, s)
		if strings.Contains(result, testHash) {
			t.Errorf("fmt.Sprintf(%s) leaked the raw secret: %s", verb, result)
		}
	}
}

func TestSecretStringMarshalJSONInStruct(t *testing.T) {
	cfg := struct {
		DatabaseURL SecretString `json:"database_url"`
		Port        string       `json:"port"`
	}{DatabaseURL: "postgres://u:p@db/aquaplan", Port: "8080"}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal returned error: %v", err)
	}
	if strings.Contains(string(data), "u:p@db") {
		t.Errorf("json.Marshal leaked the raw secret: %s", data)
	}
	if !strings.Contains(string(data), redactedPlaceholder) {
		t.Errorf("json.Marshal did not contain redacted placeholder: %s", data)
	}
}

func TestSecretStringUnmaskAndIsSet(t *testing.T) {
	s := SecretString(testHash)
	if s.Unmask() != testHash {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testHash)
	}
	if !s.IsSet() {
		t.Error("IsSet() = false for a non-empty secret")
	}
	if SecretString("").IsSet() {
		t.Error("IsSet() = true for an empty secret")
	}
}
