package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aquaplan/internal/types"
)

// defaultRequestTimeout applies when the config carries no timeout.
const defaultRequestTimeout = 30 * time.Second

// requestIDHeader is read from and echoed to clients.
const requestIDHeader = "X-Request-Id"

var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	apiKeyHeader,
}

// MountRoutes installs the middleware chain, the /v1 routes and /health.
// Call it after V1RouteRegistrars and HealthProbes are populated.
func (s *Server) MountRoutes() error {
	compress, err := NewCompressionMiddleware()
	if err != nil {
		return err
	}

	// Order matters:
	//  1. Recoverer       outermost so every panic is caught
	//  2. ContextTimeout
	//  3. RequestID       before anything that logs
	//  4. SecurityHeaders
	//  5. RequestLogger   installs the request-scoped logger
	//  6. CORS            preflight answered before auth
	//  7. Metrics
	//  8. Compression
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(compress)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(errCodeNotFoundRoute, "no route for "+r.Method+" "+r.URL.Path, nil))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusMethodNotAllowed, APIErrorResponse{Error: ErrorDetail{
			Code:      "method_not_allowed",
			Message:   r.Method + " is not supported on " + r.URL.Path,
			RequestID: types.GetRequestID(r.Context()),
		}})
	})

	s.router.Route("/v1", s.mountV1)
	s.router.Get("/health", s.HandleHealth)
	return nil
}

const errCodeNotFoundRoute types.ErrorCode = "not_found_route"

// mountV1 applies API key auth and runs the registrars.
func (s *Server) mountV1(r chi.Router) {
	r.Use(s.APIKeyMiddleware)
	for _, register := range s.V1RouteRegistrars {
		register(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context. It bounds
// tariff feed calls and run persistence; engine runs are CPU-bound and
// finish on their own.
func ContextTimeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware propagates X-Request-Id or generates one, stores it
// in the context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = generateRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
	})
}

// generateRequestID returns 16 random bytes as hex.
func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b) // crypto/rand.Read never returns an error since Go 1.24
	return hex.EncodeToString(b)
}
