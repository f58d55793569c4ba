// Package agent wires the chat model, the corpus retriever and the answer
// extractor into the question-answering loop: retrieve context, compose a
// prompt, make one model call, and map the reply onto one of the question's
// choices.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/quizmind/mcqa-go/internal/budget"
	"github.com/quizmind/mcqa-go/internal/extract"
	"github.com/quizmind/mcqa-go/internal/logging"
	"github.com/quizmind/mcqa-go/internal/prompt"
	"github.com/quizmind/mcqa-go/internal/rag"
)

// defaultTimeout bounds a single model call.
const defaultTimeout = 60 * time.Second

// ContextRetriever supplies reference passages relevant to a question.
// Implementations must be safe to call from multiple goroutines.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) ([]rag.ScoredChunk, error)
}

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// Retriever supplies corpus context per question. May be nil to run
	// without retrieval.
	Retriever ContextRetriever

	// Extractor maps model replies onto choice indexes. Defaults to the
	// standard cascade with zero-indexed numeric reading.
	Extractor *extract.Extractor

	// Exemplars are worked examples injected into every prompt. Nil selects
	// the built-in set; an empty non-nil slice disables exemplars.
	Exemplars []prompt.Exemplar

	// Reasoning asks the model to reason step by step before stating its
	// answer. Off, the prompt demands a bare letter.
	Reasoning bool

	// Timeout bounds each model call. Defaults to 60 seconds if zero.
	Timeout time.Duration
}

// Outcome is the result of answering a single question.
type Outcome struct {
	// Index is the zero-based index of the chosen answer, or extract.NoMatch
	// when the reply could not be mapped onto a choice.
	Index int

	// Strategy names the extraction rule that produced Index.
	Strategy extract.Strategy

	// Raw is the model's reply text, kept for reports and debugging.
	Raw string

	// Err is the provider or transport failure behind a NoMatch, if any.
	// A reply that merely resists extraction is not an error; Err stays nil.
	Err error
}

// Agent answers multiple-choice questions with a single model call per
// question. It is safe for concurrent use.
type Agent struct {
	chatModel model.BaseChatModel
	retriever ContextRetriever
	extractor *extract.Extractor
	exemplars []prompt.Exemplar
	reasoning bool
	timeout   time.Duration
}

// New constructs an Agent from the provided Config.
func New(cfg *Config) (*Agent, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}

	extractor := cfg.Extractor
	if extractor == nil {
		extractor = extract.New(extract.ZeroIndexed)
	}
	exemplars := cfg.Exemplars
	if exemplars == nil {
		exemplars = prompt.DefaultExemplars
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Agent{
		chatModel: cfg.ChatModel,
		retriever: cfg.Retriever,
		extractor: extractor,
		exemplars: exemplars,
		reasoning: cfg.Reasoning,
		timeout:   timeout,
	}, nil
}

// Answer runs one question through the model and maps the reply onto one of
// choices. It never returns an error: anything that prevents a confident
// reading, from an unreachable provider to an off-format reply, resolves to
// a NoMatch outcome. Provider failures are carried in the outcome's Err so
// callers can tell them apart from replies that merely resist extraction.
func (a *Agent) Answer(ctx context.Context, question string, choices []string) Outcome {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(question) == "" || len(choices) < 2 || len(choices) > extract.MaxChoices {
		log.Debug("agent: rejecting malformed question",
			slog.Int("choices", len(choices)))
		return Outcome{Index: extract.NoMatch, Strategy: extract.StrategyNone}
	}

	opts := prompt.Options{Exemplars: a.exemplars, Reasoning: a.reasoning}
	if a.retriever != nil {
		scored, err := a.retriever.Retrieve(ctx, question)
		if err != nil {
			// Retrieval failure is non-fatal: answer from the model's own
			// knowledge rather than refusing the question.
			log.Warn("agent: retrieval failed, continuing without context", slog.Any("error", err))
		} else {
			opts.Context = rag.ContextText(scored)
		}
	}

	p := prompt.Compose(question, choices, opts)
	messages := []*schema.Message{
		schema.SystemMessage(p.System),
		schema.UserMessage(p.User),
	}
	log.Debug("agent: prompt composed",
		slog.Int("context_chars", len(opts.Context)),
		slog.Int("est_tokens", budget.EstimateMessages(messages)))

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msg, err := a.chatModel.Generate(callCtx, messages)
	if err != nil {
		log.Warn("agent: model call failed", slog.Any("error", err))
		return Outcome{
			Index:    extract.NoMatch,
			Strategy: extract.StrategyNone,
			Err:      fmt.Errorf("agent: generate: %w", err),
		}
	}
	var raw string
	if msg != nil {
		raw = msg.Content
	}

	res := a.extractor.Extract(raw, choices)
	log.Debug("agent: extracted answer",
		slog.Int("index", res.Index),
		slog.String("strategy", string(res.Strategy)))
	return Outcome{Index: res.Index, Strategy: res.Strategy, Raw: raw}
}

// GetResponse answers question and flattens the outcome to a bare choice
// index, the contract the CLI and HTTP surfaces expose: a zero-based index
// into choices, or -1 when no answer could be read.
func (a *Agent) GetResponse(ctx context.Context, question string, choices []string) int {
	return a.Answer(ctx, question, choices).Index
}
