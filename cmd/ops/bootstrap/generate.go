package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// apiKeyByteLength gives 192 bits of entropy; the hex form plus prefix stays
// under bcrypt's 72-byte input limit.
const apiKeyByteLength = 24

// apiKeyPrefix lets operators recognise keys in logs and config.
const apiKeyPrefix = "ak_"

// apiKeyHashCost is a variable so tests can use bcrypt.MinCost.
var apiKeyHashCost = bcrypt.DefaultCost

// GenerateAPIKey returns a fresh API key and its bcrypt hash. Only the hash
// is stored; the key is shown to the operator once.
func GenerateAPIKey() (key, hash string, err error) {
	buf := make([]byte, apiKeyByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating API key: crypto/rand failed: %w", err)
	}
	key = apiKeyPrefix + hex.EncodeToString(buf)

	h, err := bcrypt.GenerateFromPassword([]byte(key), apiKeyHashCost)
	if err != nil {
		return "", "", fmt.Errorf("hashing API key: %w", err)
	}
	return key, string(h), nil
}
