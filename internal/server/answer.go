package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quizmind/mcqa-go/internal/extract"
	"github.com/quizmind/mcqa-go/internal/logging"
)

// handleAnswer handles POST /api/answer. The body carries a question and its
// candidate answers; the response carries the chosen index together with its
// letter label, its text, and the extraction strategy that recognized it.
// An index of -1 means the model replied but no choice could be recognized
// in the reply; that is a 200, not an error.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, "question is required", http.StatusBadRequest)
		return
	}
	if len(req.Choices) < 2 {
		writeJSONError(w, "at least two choices are required", http.StatusBadRequest)
		return
	}
	if len(req.Choices) > extract.MaxChoices {
		writeJSONError(w, "too many choices", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AnswerTimeout)
	defer cancel()

	s.metrics.answerInFlight.Inc()
	start := time.Now()
	out := s.answerer.Answer(ctx, req.Question, req.Choices)
	elapsed := time.Since(start)
	s.metrics.answerInFlight.Dec()

	outcome := "ok"
	switch {
	case errors.Is(out.Err, context.DeadlineExceeded):
		outcome = "timeout"
	case out.Err != nil:
		outcome = "error"
	case out.Index == extract.NoMatch:
		outcome = "no_match"
	}
	s.metrics.answerRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.answerDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if out.Err != nil {
		log.Error("answer failed",
			slog.Any("error", out.Err),
			slog.Duration("duration", elapsed),
		)
		status := http.StatusBadGateway
		if errors.Is(out.Err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSONError(w, "answering failed: "+out.Err.Error(), status)
		return
	}

	// The strategy counter only covers replies that actually reached
	// extraction; transport failures are accounted above.
	s.metrics.extractionTotal.WithLabelValues(string(out.Strategy)).Inc()

	resp := answerResponse{
		Index:    out.Index,
		Strategy: string(out.Strategy),
		Raw:      out.Raw,
	}
	if out.Index >= 0 && out.Index < len(req.Choices) {
		resp.Label = extract.Label(out.Index)
		resp.Text = req.Choices[out.Index]
	}

	log.Info("question answered",
		slog.Int("index", out.Index),
		slog.String("strategy", string(out.Strategy)),
		slog.Duration("duration", elapsed),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("answer encode error", slog.Any("error", err))
	}
}
