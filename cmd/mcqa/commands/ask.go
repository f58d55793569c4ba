package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quizmind/mcqa-go/internal/extract"
	"github.com/quizmind/mcqa-go/internal/logging"
	"github.com/quizmind/mcqa-go/internal/provider"
)

// NewAskCmd constructs the `mcqa ask` command, which answers a single
// multiple-choice question and prints the chosen answer.
func NewAskCmd() *cobra.Command {
	var choices []string
	var showRaw bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single multiple-choice question",
		Long: `Answer one multiple-choice question against the configured corpus.

The question is the positional argument; candidate answers are given with
repeated --choice flags. The agent retrieves relevant corpus passages, asks
the model once, and maps the reply back onto one of the choices.

Examples:
  mcqa ask "Which organelle is the site of oxidative phosphorylation?" \
    -c nucleus -c mitochondrion -c ribosome -c chloroplast
  mcqa ask --raw "Which base pairs with adenine in DNA?" -c thymine -c cytosine -c guanine`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(choices) < 2 {
				return fmt.Errorf("ask: at least two --choice values are required")
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			stack, err := buildRetrieval(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer stack.close()

			qa, err := newAgent(chatModel, stack.retriever)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise agent: %w", err)
			}

			out := qa.Answer(ctx, args[0], choices)
			if out.Err != nil {
				return fmt.Errorf("ask: %w", out.Err)
			}

			if showRaw {
				fmt.Printf("%s\n\n", out.Raw)
			}

			if out.Index == extract.NoMatch {
				return fmt.Errorf("ask: the reply named no choice (rerun with --raw to see it)")
			}

			fmt.Printf("%s. %s\n", extract.Label(out.Index), choices[out.Index])
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&choices, "choice", "c", nil, "Candidate answer (repeat once per choice, in order)")
	cmd.Flags().BoolVar(&showRaw, "raw", false, "Also print the model's full reply")

	return cmd
}
