package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/quizmind/mcqa-go/internal/logging"
)

// probeTimeout bounds each dependency probe so /api/ready answers within
// one timeout even when a dependency hangs rather than refuses.
const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report its own reachability: the chat
// model, the embedding endpoint, the vector store. Implementations must be
// safe for concurrent use; readiness probes run in parallel.
type Pinger interface {
	// Ping returns nil when the dependency answers within ctx.
	Ping(ctx context.Context) error

	// Name is the label under which the probe result is reported,
	// e.g. "ollama" or "qdrant".
	Name() string
}

// readyCheck is one dependency's result within the /api/ready response.
type readyCheck struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// Millis is how long the probe took, useful when a dependency is up
	// but degraded.
	Millis int64 `json:"duration_ms"`
	// Error is the failure reason; empty on success.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleHealth serves GET /api/health, the liveness probe. It only says the
// process is up; dependency state belongs to /api/ready.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		logging.FromContext(r.Context()).Error("health encode error", slog.Any("error", err))
	}
}

// handleReady serves GET /api/ready. All registered pingers are probed
// concurrently, each under its own probeTimeout; the endpoint returns 200
// only when every dependency answered, 503 otherwise. With no pingers
// configured it degrades to a liveness check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	checks := make([]readyCheck, len(s.pingers))

	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()

			started := time.Now()
			err := p.Ping(probeCtx)

			check := readyCheck{
				Name:   p.Name(),
				OK:     err == nil,
				Millis: time.Since(started).Milliseconds(),
			}
			if err != nil {
				check.Error = err.Error()
				log.Warn("readiness probe failed",
					slog.String("dependency", p.Name()),
					slog.Any("error", err),
				)
			}
			checks[i] = check
		}()
	}
	wg.Wait()

	resp := readyResponse{Ready: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("ready encode error", slog.Any("error", err))
	}
}
