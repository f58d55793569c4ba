package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/quizmind/mcqa-go/internal/eval"
	"github.com/quizmind/mcqa-go/internal/logging"
	"github.com/quizmind/mcqa-go/internal/provider"
	"github.com/quizmind/mcqa-go/internal/questions"
)

// NewEvalCmd constructs the `mcqa eval` command, which benchmarks the agent
// against a keyed question set and fails when the median score drops below
// the threshold.
func NewEvalCmd() *cobra.Command {
	var runs int
	var workers int
	var threshold float64
	var outPath string

	cmd := &cobra.Command{
		Use:   "eval [questions.csv]",
		Short: "Benchmark the agent against a keyed question set",
		Long: `Run the full question set several times and judge the median score.

Each run answers every question once; correctness is scored against the
answer key in the CSV. The verdict compares the median score across runs,
as a fraction of the set, against the threshold. The command exits non-zero
when the benchmark fails, so it can gate CI.

The CSV needs header columns id, question, answer_0..answer_N, correct.

Examples:
  mcqa eval questions.csv
  mcqa eval questions.csv --runs 5 --threshold 0.8
  mcqa eval questions.csv --out report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			qs, err := questions.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}
			log.Info("question set loaded",
				slog.String("path", args[0]),
				slog.Int("questions", len(qs)),
			)

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("eval: failed to initialise model provider: %w", err)
			}

			stack, err := buildRetrieval(ctx, log, true)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}
			defer stack.close()

			qa, err := newAgent(chatModel, stack.retriever)
			if err != nil {
				return fmt.Errorf("eval: failed to initialise agent: %w", err)
			}

			// Flags win over env; the flag defaults match the harness.
			if !cmd.Flags().Changed("runs") {
				runs = getEnvInt("EVAL_RUNS", runs)
			}
			if !cmd.Flags().Changed("workers") {
				workers = getEnvInt("EVAL_WORKERS", workers)
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = getEnvFloat64("EVAL_THRESHOLD", threshold)
			}

			bar := progressbar.NewOptions(runs*len(qs),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("answering"),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)

			h, err := eval.New(&eval.Config{
				Answerer:  qa,
				Questions: qs,
				Runs:      runs,
				Workers:   workers,
				Threshold: threshold,
				Progress: func(run, done, total int) {
					_ = bar.Set((run-1)*total + done)
				},
			})
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			summary, err := h.Run(ctx)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}
			_ = bar.Finish()

			printSummary(summary)

			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("eval: create report: %w", err)
				}
				defer f.Close()
				if err := eval.WriteReport(f, summary); err != nil {
					return err
				}
				log.Info("report written", slog.String("path", outPath))
			}

			if !summary.Passed {
				return fmt.Errorf("eval: FAIL: median score %.1f of %d (%.1f%%) is below the %.0f%% threshold",
					summary.Median, summary.Total, summary.MedianAccuracy*100, summary.Threshold*100)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 3, "Number of full passes over the question set")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent questions per run")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.70, "Minimum passing median accuracy (0..1)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the full JSON report to this file")

	return cmd
}

// printSummary writes the human-readable verdict block to stdout.
func printSummary(s *eval.Summary) {
	fmt.Println()
	for _, r := range s.RunDetails {
		fmt.Printf("run %d: %d/%d correct (%d no-match, %d failed) in %s\n",
			r.Run, r.Score, r.Total, r.NoMatch, r.Failures, r.Elapsed.Round(time.Millisecond))
	}

	fmt.Println()
	fmt.Printf("runs:      %d\n", s.Runs)
	fmt.Printf("scores:    %v\n", s.Scores)
	fmt.Printf("min/max:   %.0f / %.0f\n", s.Min, s.Max)
	fmt.Printf("mean:      %.2f\n", s.Mean)
	fmt.Printf("median:    %.1f of %d (%.1f%%)\n", s.Median, s.Total, s.MedianAccuracy*100)
	fmt.Printf("threshold: %.0f%%\n", s.Threshold*100)
	if s.Passed {
		fmt.Println("verdict:   PASS")
	} else {
		fmt.Println("verdict:   FAIL")
	}
}
