package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds all probes together.
const healthCheckTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe reports the run store as unhealthy when a ping fails.
type DatabaseProbe struct {
	DB Pinger
}

func (p DatabaseProbe) Name() string { return "database" }

func (p DatabaseProbe) Check(ctx context.Context) error {
	if err := p.DB.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// HandleHealth runs every probe concurrently under a shared deadline and
// answers 200 when all pass, 503 otherwise. Engines have no external
// dependencies, so with no probes registered the service is healthy.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: statusHealthy}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	// Each probe owns one slot; a slot still nil after the deadline means the
	// probe did not return in time.
	results := make([]*componentStatus, len(s.HealthProbes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, probe := range s.HealthProbes {
		wg.Go(func() {
			status := runProbe(ctx, probe)
			mu.Lock()
			results[i] = &status
			mu.Unlock()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	resp.Components = make(map[string]componentStatus, len(s.HealthProbes))
	for i, probe := range s.HealthProbes {
		st := componentStatus{Status: statusUnhealthy, Message: "health check timed out"}
		if results[i] != nil {
			st = *results[i]
		}
		if st.Status != statusHealthy {
			resp.Status = statusUnhealthy
		}
		resp.Components[probe.Name()] = st
	}

	code := http.StatusOK
	if resp.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	JSON(w, r, code, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (st componentStatus) {
	defer func() {
		if rvr := recover(); rvr != nil {
			st = componentStatus{Status: statusUnhealthy, Message: fmt.Sprintf("probe panicked: %v", rvr)}
		}
	}()
	if err := p.Check(ctx); err != nil {
		return componentStatus{Status: statusUnhealthy, Message: err.Error()}
	}
	return componentStatus{Status: statusHealthy}
}
