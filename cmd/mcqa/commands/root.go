// Package commands defines all Cobra CLI commands for the mcqa binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quizmind/mcqa-go/internal/audit"
	"github.com/quizmind/mcqa-go/internal/config"
	"github.com/quizmind/mcqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcqa",
		Short: "Corpus-grounded multiple-choice question answering",
		Long: `mcqa answers multiple-choice questions with an LLM grounded in your own
reference corpus.

The question and its candidate answers are combined with the most relevant
corpus passages into a single prompt; the model's reply is mapped back onto
one of the choices by a tolerant extraction cascade. The same pipeline backs
a one-shot CLI (ask), a benchmark harness (eval), and an HTTP API (serve).

The model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.mcqa/config.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env file complements the shell environment; values
			// already exported win.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.mcqa/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIndexCmd(),
		NewEvalCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
