// Package health probes the service's dependencies and serves the
// /health endpoint.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Checker probes one dependency.
type Checker interface {
	// Name labels the dependency in the health response.
	Name() string
	// Check returns nil when the dependency is reachable.
	Check(ctx context.Context) error
}

// Response is the health endpoint payload.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Handler runs every checker under the timeout and reports the result
// as JSON: 200 with status "healthy" when all pass, 503 with status
// "unhealthy" and the failing checks' errors otherwise.
func Handler(timeout time.Duration, checkers ...Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := Response{
			Status: "healthy",
			Checks: make(map[string]string, len(checkers)),
		}
		code := http.StatusOK

		for _, c := range checkers {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name()] = err.Error()
				resp.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name()] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	}
}
