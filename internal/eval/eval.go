// Package eval scores the agent against a keyed question set. A benchmark of
// a nondeterministic answerer is itself nondeterministic, so the verdict is
// statistical: the whole set is run several times and the median score across
// runs is compared against the threshold, so one lucky or unlucky pass cannot
// decide the outcome.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modfin/henry/slicez"
	"github.com/montanaflynn/stats"

	"github.com/quizmind/mcqa-go/internal/agent"
	"github.com/quizmind/mcqa-go/internal/extract"
	"github.com/quizmind/mcqa-go/internal/questions"
)

const (
	defaultRuns      = 3
	defaultWorkers   = 4
	defaultThreshold = 0.70
)

// Answerer is the harness's view of the agent. Implementations must be safe
// to call from multiple goroutines.
type Answerer interface {
	Answer(ctx context.Context, question string, choices []string) agent.Outcome
}

// Config configures a Harness.
type Config struct {
	// Answerer answers the questions. Required.
	Answerer Answerer

	// Questions is the keyed benchmark set. Every question must carry an
	// answer key. Required.
	Questions []questions.Question

	// Runs is how many times the whole set is answered. Defaults to 3.
	Runs int

	// Workers is the number of questions answered concurrently within a run.
	// Defaults to 4.
	Workers int

	// Threshold is the fraction of questions the median score must reach,
	// in (0, 1]. Defaults to 0.70.
	Threshold float64

	// Progress, when set, is called after each answered question with the
	// 1-based run number and the progress within that run.
	Progress func(run, done, total int)
}

// QuestionResult is the outcome for one question in one run.
type QuestionResult struct {
	ID           string           `json:"id"`
	Question     string           `json:"question"`
	ResponseIdx  int              `json:"response_idx"`
	ResponseText string           `json:"response_text,omitempty"`
	CorrectIdx   int              `json:"correct_idx"`
	CorrectText  string           `json:"correct_text"`
	Right        bool             `json:"is_correct"`
	Strategy     extract.Strategy `json:"strategy"`
	Error        string           `json:"error,omitempty"`
}

// RunSummary aggregates one pass over the question set.
type RunSummary struct {
	Run      int              `json:"run"`
	Score    int              `json:"score"`
	Total    int              `json:"total"`
	NoMatch  int              `json:"no_match"`
	Failures int              `json:"failures"`
	Elapsed  time.Duration    `json:"elapsed_ns"`
	Results  []QuestionResult `json:"results"`
}

// Summary is the verdict over all runs. Min, Max, Mean and Median are in
// units of questions answered correctly; the pass decision compares the
// median as a fraction of the set against Threshold.
type Summary struct {
	Runs           int           `json:"runs"`
	Total          int           `json:"total"`
	Scores         []int         `json:"scores"`
	Min            float64       `json:"min"`
	Max            float64       `json:"max"`
	Mean           float64       `json:"mean"`
	Median         float64       `json:"median"`
	MedianAccuracy float64       `json:"median_accuracy"`
	Threshold      float64       `json:"threshold"`
	Passed         bool          `json:"passed"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	RunDetails     []RunSummary  `json:"run_details"`
}

// Harness runs the benchmark. Construct with New.
type Harness struct {
	answerer  Answerer
	questions []questions.Question
	runs      int
	workers   int
	threshold float64
	progress  func(run, done, total int)
}

// New constructs a Harness from cfg.
func New(cfg *Config) (*Harness, error) {
	if cfg == nil || cfg.Answerer == nil {
		return nil, fmt.Errorf("eval: Answerer must not be nil")
	}
	if len(cfg.Questions) == 0 {
		return nil, fmt.Errorf("eval: question set is empty")
	}
	for _, q := range cfg.Questions {
		if !q.HasKey() {
			return nil, fmt.Errorf("eval: question %q has no answer key", q.ID)
		}
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("eval: threshold %v is outside (0, 1]", cfg.Threshold)
	}

	h := &Harness{
		answerer:  cfg.Answerer,
		questions: cfg.Questions,
		runs:      cfg.Runs,
		workers:   cfg.Workers,
		threshold: cfg.Threshold,
		progress:  cfg.Progress,
	}
	if h.runs <= 0 {
		h.runs = defaultRuns
	}
	if h.workers <= 0 {
		h.workers = defaultWorkers
	}
	if h.threshold == 0 {
		h.threshold = defaultThreshold
	}
	if h.progress == nil {
		h.progress = func(run, done, total int) {}
	}
	return h, nil
}

// Run answers the whole set h.runs times and returns the aggregated verdict.
// It stops early only when ctx is done.
func (h *Harness) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	runs := make([]RunSummary, 0, h.runs)
	for r := 1; r <= h.runs; r++ {
		rs, err := h.runOnce(ctx, r)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rs)
	}

	scores := slicez.Map(runs, func(r RunSummary) float64 { return float64(r.Score) })

	median, err := stats.Median(scores)
	if err != nil {
		return nil, fmt.Errorf("eval: median: %w", err)
	}
	mean, err := stats.Mean(scores)
	if err != nil {
		return nil, fmt.Errorf("eval: mean: %w", err)
	}
	low, err := stats.Min(scores)
	if err != nil {
		return nil, fmt.Errorf("eval: min: %w", err)
	}
	high, err := stats.Max(scores)
	if err != nil {
		return nil, fmt.Errorf("eval: max: %w", err)
	}

	total := len(h.questions)
	accuracy := median / float64(total)

	return &Summary{
		Runs:           h.runs,
		Total:          total,
		Scores:         slicez.Map(runs, func(r RunSummary) int { return r.Score }),
		Min:            low,
		Max:            high,
		Mean:           mean,
		Median:         median,
		MedianAccuracy: accuracy,
		Threshold:      h.threshold,
		Passed:         accuracy+1e-9 >= h.threshold,
		Elapsed:        time.Since(start),
		RunDetails:     runs,
	}, nil
}

// runOnce answers every question once, fanning out across h.workers
// goroutines. Each worker writes only its own slots of the results slice, so
// output order matches question order regardless of completion order.
func (h *Harness) runOnce(ctx context.Context, run int) (RunSummary, error) {
	start := time.Now()
	results := make([]QuestionResult, len(h.questions))

	var cursor, done atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < h.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(h.questions) || ctx.Err() != nil {
					return
				}
				results[i] = h.answerOne(ctx, h.questions[i])
				h.progress(run, int(done.Add(1)), len(h.questions))
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return RunSummary{}, fmt.Errorf("eval: run %d: %w", run, err)
	}

	right := slicez.Filter(results, func(r QuestionResult) bool { return r.Right })
	noMatch := slicez.Filter(results, func(r QuestionResult) bool {
		return r.ResponseIdx == extract.NoMatch && r.Error == ""
	})
	failed := slicez.Filter(results, func(r QuestionResult) bool { return r.Error != "" })

	return RunSummary{
		Run:      run,
		Score:    len(right),
		Total:    len(h.questions),
		NoMatch:  len(noMatch),
		Failures: len(failed),
		Elapsed:  time.Since(start),
		Results:  results,
	}, nil
}

func (h *Harness) answerOne(ctx context.Context, q questions.Question) QuestionResult {
	out := h.answerer.Answer(ctx, q.Text, q.Choices)

	r := QuestionResult{
		ID:          q.ID,
		Question:    q.Text,
		ResponseIdx: out.Index,
		CorrectIdx:  q.Correct,
		CorrectText: q.Choices[q.Correct],
		Right:       out.Index == q.Correct,
		Strategy:    out.Strategy,
	}
	if out.Index >= 0 && out.Index < len(q.Choices) {
		r.ResponseText = q.Choices[out.Index]
	}
	if out.Err != nil {
		r.Error = out.Err.Error()
	}
	return r
}

// WriteReport writes the summary as indented JSON.
func WriteReport(w io.Writer, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("eval: marshal report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("eval: write report: %w", err)
	}
	return nil
}
