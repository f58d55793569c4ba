package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/quizmind/mcqa-go/internal/extract"
	"github.com/quizmind/mcqa-go/internal/prompt"
	"github.com/quizmind/mcqa-go/internal/rag"
)

// fakeChatModel returns a canned reply and records every call.
type fakeChatModel struct {
	reply string
	err   error
	delay time.Duration

	calls    int
	lastMsgs []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	f.lastMsgs = msgs
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("fake: streaming not supported")
}

type fakeRetriever struct {
	chunks []rag.ScoredChunk
	err    error

	calls     int
	lastQuery string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) ([]rag.ScoredChunk, error) {
	f.calls++
	f.lastQuery = query
	return f.chunks, f.err
}

var fourChoices = []string{"A town in Spain", "A genetically modified organism", "A kind of protein", "An extinct reptile"}

func newTestAgent(t *testing.T, cfg *Config) *Agent {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew_RequiresChatModel(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Error("New(nil) error = nil, want an error")
	}
	if _, err := New(&Config{}); err == nil {
		t.Error("New() without a chat model returned nil error")
	}
}

func TestAgent_Answer_ExtractsFromReply(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{reply: "The material suggests GMOs are engineered.\n\nAnswer: B"}
	a := newTestAgent(t, &Config{ChatModel: chat})

	out := a.Answer(t.Context(), "What is a GMO?", fourChoices)

	if out.Index != 1 {
		t.Errorf("Index = %d, want 1", out.Index)
	}
	if out.Strategy != extract.StrategyAnswerTag {
		t.Errorf("Strategy = %q, want %q", out.Strategy, extract.StrategyAnswerTag)
	}
	if out.Err != nil {
		t.Errorf("Err = %v, want nil", out.Err)
	}
	if !strings.Contains(out.Raw, "Answer: B") {
		t.Errorf("Raw = %q, want the model reply carried through", out.Raw)
	}
	if chat.calls != 1 {
		t.Errorf("model called %d times, want exactly 1", chat.calls)
	}

	if len(chat.lastMsgs) != 2 {
		t.Fatalf("model received %d messages, want system + user", len(chat.lastMsgs))
	}
	user := chat.lastMsgs[1].Content
	if !strings.Contains(user, "What is a GMO?") {
		t.Error("user message does not contain the question")
	}
	if !strings.Contains(user, "B) A genetically modified organism") {
		t.Error("user message does not contain the labelled choices")
	}
}

func TestAgent_Answer_InjectsRetrievedContext(t *testing.T) {
	t.Parallel()

	chunk := rag.Chunk{Seq: 0, ID: "c0", Text: "Photosynthesis occurs in chloroplasts."}
	retr := &fakeRetriever{chunks: []rag.ScoredChunk{{Chunk: &chunk, Score: 0.92}}}
	chat := &fakeChatModel{reply: "Answer: A"}
	a := newTestAgent(t, &Config{ChatModel: chat, Retriever: retr})

	question := "Where does photosynthesis occur?"
	a.Answer(t.Context(), question, []string{"Chloroplasts", "Mitochondria"})

	if retr.calls != 1 || retr.lastQuery != question {
		t.Errorf("retriever saw %d calls with query %q, want 1 call with the question", retr.calls, retr.lastQuery)
	}
	user := chat.lastMsgs[1].Content
	if !strings.Contains(user, "=== Relevant Reference Material ===") {
		t.Error("user message does not bracket the retrieved context")
	}
	if !strings.Contains(user, "Photosynthesis occurs in chloroplasts.") {
		t.Error("user message does not include the retrieved passage")
	}
}

func TestAgent_Answer_RetrievalFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	retr := &fakeRetriever{err: errors.New("qdrant: connection refused")}
	chat := &fakeChatModel{reply: "Answer: B"}
	a := newTestAgent(t, &Config{ChatModel: chat, Retriever: retr})

	out := a.Answer(t.Context(), "What is a GMO?", fourChoices)

	if chat.calls != 1 {
		t.Fatalf("model called %d times after retrieval failure, want 1", chat.calls)
	}
	if out.Index != 1 || out.Err != nil {
		t.Errorf("Answer() = %+v, want index 1 from the model's own knowledge", out)
	}
}

func TestAgent_Answer_ModelFailureIsNoMatchWithErr(t *testing.T) {
	t.Parallel()

	boom := errors.New("openai: 503")
	chat := &fakeChatModel{err: boom}
	a := newTestAgent(t, &Config{ChatModel: chat})

	out := a.Answer(t.Context(), "What is a GMO?", fourChoices)

	if out.Index != extract.NoMatch || out.Strategy != extract.StrategyNone {
		t.Errorf("Answer() = %+v, want NoMatch", out)
	}
	if !errors.Is(out.Err, boom) {
		t.Errorf("Err = %v, want the provider error wrapped", out.Err)
	}
}

func TestAgent_Answer_UnreadableReplyIsCleanNoMatch(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{reply: "I cannot determine this from the given information."}
	a := newTestAgent(t, &Config{ChatModel: chat})

	out := a.Answer(t.Context(), "What is a GMO?", fourChoices)

	if out.Index != extract.NoMatch {
		t.Errorf("Index = %d, want NoMatch", out.Index)
	}
	if out.Err != nil {
		t.Errorf("Err = %v, want nil for a reply that merely resists extraction", out.Err)
	}
}

func TestAgent_Answer_MalformedQuestionSkipsModel(t *testing.T) {
	t.Parallel()

	tooMany := make([]string, extract.MaxChoices+1)
	for i := range tooMany {
		tooMany[i] = "choice"
	}

	tests := []struct {
		name     string
		question string
		choices  []string
	}{
		{name: "blank question", question: "   ", choices: fourChoices},
		{name: "single choice", question: "Pick one", choices: []string{"only"}},
		{name: "no choices", question: "Pick one", choices: nil},
		{name: "too many choices", question: "Pick one", choices: tooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chat := &fakeChatModel{reply: "Answer: A"}
			a := newTestAgent(t, &Config{ChatModel: chat})

			out := a.Answer(t.Context(), tt.question, tt.choices)
			if out.Index != extract.NoMatch {
				t.Errorf("Index = %d, want NoMatch", out.Index)
			}
			if chat.calls != 0 {
				t.Errorf("model called %d times for malformed input, want 0", chat.calls)
			}
		})
	}
}

func TestAgent_Answer_TimeoutResolvesToNoMatch(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{reply: "Answer: A", delay: 200 * time.Millisecond}
	a := newTestAgent(t, &Config{ChatModel: chat, Timeout: 10 * time.Millisecond})

	out := a.Answer(t.Context(), "What is a GMO?", fourChoices)

	if out.Index != extract.NoMatch {
		t.Errorf("Index = %d, want NoMatch on timeout", out.Index)
	}
	if !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want context.DeadlineExceeded in the chain", out.Err)
	}
}

func TestAgent_Answer_ReasoningModeShapesPrompt(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{reply: "Reasoning: engineered genome.\nAnswer: B"}
	a := newTestAgent(t, &Config{ChatModel: chat, Reasoning: true})

	out := a.Answer(t.Context(), "What is a GMO?", fourChoices)

	user := chat.lastMsgs[1].Content
	if !strings.Contains(user, "Respond in this format:") {
		t.Error("reasoning prompt is missing the response format block")
	}
	if out.Index != 1 {
		t.Errorf("Index = %d, want 1", out.Index)
	}
}

func TestAgent_Answer_ExemplarsCanBeDisabled(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{reply: "Answer: A"}
	a := newTestAgent(t, &Config{ChatModel: chat, Exemplars: []prompt.Exemplar{}})

	a.Answer(t.Context(), "What is a GMO?", fourChoices)

	if strings.Contains(chat.lastMsgs[1].Content, "Here are examples") {
		t.Error("prompt contains exemplars although they were disabled")
	}
}

func TestAgent_GetResponse(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, &Config{ChatModel: &fakeChatModel{reply: "Answer: C"}})
	if got := a.GetResponse(t.Context(), "What is a GMO?", fourChoices); got != 2 {
		t.Errorf("GetResponse() = %d, want 2", got)
	}

	failing := newTestAgent(t, &Config{ChatModel: &fakeChatModel{err: errors.New("down")}})
	if got := failing.GetResponse(t.Context(), "What is a GMO?", fourChoices); got != -1 {
		t.Errorf("GetResponse() = %d, want -1 on provider failure", got)
	}
}
