package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quizmind/mcqa-go/internal/agent"
	"github.com/quizmind/mcqa-go/internal/extract"
)

// newRoutedServer builds a fully wired Server via New with a discard logger
// and an isolated metrics registry.
func newRoutedServer(t *testing.T, a answerer, apiKey string) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	s, err := New(a, &Config{
		APIKey:          apiKey,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopThrottle)
	return s
}

func TestNew_NilAnswerer(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &Config{}); err == nil {
		t.Error("expected error for nil answerer")
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	s := newRoutedServer(t, &fakeAnswerer{}, "")

	if s.cfg.Host != "127.0.0.1" {
		t.Errorf("host: expected 127.0.0.1, got %q", s.cfg.Host)
	}
	if s.cfg.Port != 8080 {
		t.Errorf("port: expected 8080, got %d", s.cfg.Port)
	}
	if s.cfg.AnswerTimeout != 2*time.Minute {
		t.Errorf("answer timeout: expected 2m, got %v", s.cfg.AnswerTimeout)
	}
	if s.cfg.WriteTimeout <= s.cfg.AnswerTimeout {
		t.Errorf("write timeout %v must exceed answer timeout %v",
			s.cfg.WriteTimeout, s.cfg.AnswerTimeout)
	}
}

// TestRoutes_AuthBoundary verifies that /api/answer requires the Bearer token
// while /api/health and /api/ready stay open for probes.
func TestRoutes_AuthBoundary(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{out: agent.Outcome{
		Index:    0,
		Strategy: extract.StrategyLoneLabel,
		Raw:      "A",
	}}
	s := newRoutedServer(t, fake, "sekret")

	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	get := func(path string) *http.Response {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+path, nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		return resp
	}

	resp := get("/api/health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health without token: expected 200, got %d", resp.StatusCode)
	}

	resp = get("/api/ready")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready without token: expected 200, got %d", resp.StatusCode)
	}

	body := `{"question":"q","choices":["a","b"]}`

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost,
		srv.URL+"/api/answer", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/answer: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("answer without token: expected 401, got %d", resp.StatusCode)
	}

	req, err = http.NewRequestWithContext(t.Context(), http.MethodPost,
		srv.URL+"/api/answer", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer sekret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/answer: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer with token: expected 200, got %d", resp.StatusCode)
	}

	var ans answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ans.Index != 0 || ans.Label != "A" {
		t.Errorf("expected index 0 label A, got %d %q", ans.Index, ans.Label)
	}
}

func TestRoutes_Index(t *testing.T) {
	t.Parallel()

	s := newRoutedServer(t, &fakeAnswerer{}, "")
	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var info map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["service"] != "mcqa" {
		t.Errorf("service: expected mcqa, got %q", info["service"])
	}
}

func TestRoutes_UnknownPath(t *testing.T) {
	t.Parallel()

	s := newRoutedServer(t, &fakeAnswerer{}, "")
	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/nope", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStart_GracefulShutdown(t *testing.T) {
	t.Parallel()

	s := &Server{
		cfg:        &Config{ShutdownTimeout: time.Second},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		httpServer: &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()},
	}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	// Give the listener a moment to come up before asking it to stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

// TestStart_ListenError verifies that a failure to bind surfaces as an error
// rather than hanging.
func TestStart_ListenError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	s := &Server{
		cfg:        &Config{ShutdownTimeout: time.Second},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		httpServer: &http.Server{Addr: ln.Addr().String(), Handler: http.NewServeMux()},
	}

	if err := s.Start(t.Context()); err == nil {
		t.Fatal("expected listen error for occupied port")
	}
}
