package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quizmind/mcqa-go/internal/agent"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed AnswerTimeout or slow answers are cut off mid-response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AnswerTimeout bounds the full answer pipeline (retrieval, generation,
	// extraction) for a single POST /api/answer request. Defaults to 2 minutes.
	AnswerTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained answer-request rate allowed per client
	// (requests/second). Defaults to 2 if zero; each request costs a
	// generation call, so the default is tight.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per client. Defaults to 5
	// if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metrics. Defaults to
	// prometheus.DefaultRegisterer; tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// answerer is the interface handleAnswer calls to resolve a question.
// *agent.Agent satisfies it; tests inject a fake.
type answerer interface {
	// Answer picks one of choices for the question and reports how the
	// choice was recognized in the model's reply.
	Answer(ctx context.Context, question string, choices []string) agent.Outcome
}

// Server is the HTTP server that wraps the answering agent.
type Server struct {
	// answerer resolves questions; set to the agent in production,
	// overridden by a fake in tests.
	answerer answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopThrottle ends the throttle's sweeper goroutine on shutdown.
	stopThrottle func()
}

// answerRequest is the JSON body for POST /api/answer.
type answerRequest struct {
	// Question is the question text.
	Question string `json:"question"`
	// Choices are the candidate answers, in presentation order.
	Choices []string `json:"choices"`
}

// answerResponse is the JSON response for POST /api/answer.
type answerResponse struct {
	// Index is the zero-based index of the chosen answer, or -1 when the
	// model's reply could not be mapped onto any choice.
	Index int `json:"index"`
	// Label is the letter label of the chosen answer ("A", "B", ...).
	// Empty when Index is -1.
	Label string `json:"label"`
	// Text is the full text of the chosen answer. Empty when Index is -1.
	Text string `json:"text"`
	// Strategy names the extraction rule that recognized the answer.
	Strategy string `json:"strategy"`
	// Raw is the model's reply text, included for debugging.
	Raw string `json:"raw,omitempty"`
}

// errorResponse is the JSON envelope for non-2xx responses.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}
