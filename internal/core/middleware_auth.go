package core

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"aquaplan/internal/types"
)

const (
	apiKeyHeader   = "X-API-Key"
	clientIDHeader = "X-Client-Id"

	defaultClientLabel = "api_key"
	maxClientLabelLen  = 64
)

// APIKeyMiddleware authenticates /v1 requests against the bcrypt hash of the
// shared API key. The key is read from X-API-Key or an Authorization Bearer
// token. Without a configured hash every request passes; config loading
// refuses to start without one outside local.
func (s *Server) APIKeyMiddleware(next http.Handler) http.Handler {
	var hash []byte
	if s.Config != nil && s.Config.Security.APIKeyHash.IsSet() {
		hash = []byte(s.Config.Security.APIKeyHash.Unmask())
	}
	if hash == nil {
		s.Logger.Warn("API key authentication disabled: no key hash configured")
		return next
	}

	v := &keyVerifier{hash: hash}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "an API key is required")
			return
		}
		if !v.verify(key) {
			types.LoggerFromContext(r.Context(), s.Logger).WarnContext(r.Context(),
				"authentication failed: invalid API key", "path", r.URL.Path)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "invalid API key")
			return
		}

		ctx := types.WithClient(r.Context(), clientLabel(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// keyVerifier remembers the digest of the last key that matched so bcrypt
// runs once per key rather than once per request.
type keyVerifier struct {
	hash []byte

	mu       sync.RWMutex
	verified []byte
}

func (v *keyVerifier) verify(key string) bool {
	digest := sha256.Sum256([]byte(key))

	v.mu.RLock()
	cached := v.verified
	v.mu.RUnlock()
	if cached != nil && subtle.ConstantTimeCompare(cached, digest[:]) == 1 {
		return true
	}

	if bcrypt.CompareHashAndPassword(v.hash, []byte(key)) != nil {
		return false
	}
	v.mu.Lock()
	v.verified = digest[:]
	v.mu.Unlock()
	return true
}

func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(apiKeyHeader)); key != "" {
		return key
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

// extractBearerToken returns the token of a "Bearer <token>" header. The
// scheme is case-insensitive (RFC 7235).
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// clientLabel names the caller in logs. The key is shared, so the label is
// whatever the caller puts in X-Client-Id.
func clientLabel(r *http.Request) string {
	label := strings.TrimSpace(r.Header.Get(clientIDHeader))
	if label == "" {
		return defaultClientLabel
	}
	if len(label) > maxClientLabelLen {
		label = label[:maxClientLabelLen]
	}
	return label
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="aquaplan"`)
	JSON(w, r, http.StatusUnauthorized, APIErrorResponse{Error: ErrorDetail{
		Code:      string(code),
		Message:   message,
		RequestID: types.GetRequestID(r.Context()),
	}})
}
