package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/quizmind/mcqa-go/internal/logging"
	"github.com/quizmind/mcqa-go/internal/provider"
	"github.com/quizmind/mcqa-go/internal/server"
	"github.com/quizmind/mcqa-go/internal/tracing"
)

// NewServeCmd constructs the `mcqa serve` command, which starts the HTTP
// answering API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP answering API",
		Long: `Start the mcqa HTTP server.

The server exposes POST /api/answer for question answering, liveness and
readiness probes (/api/health, /api/ready), and Prometheus metrics
(/metrics). Set MCQA_API_KEY to require a Bearer token on /api/answer.

The corpus is embedded (or loaded from cache) once at startup and held in
memory; configure Qdrant to serve a pre-indexed corpus instead.

Examples:
  mcqa serve
  mcqa serve --port 9090
  MODEL_PROVIDER=azure MCQA_API_KEY=sekret mcqa serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			stack, err := buildRetrieval(ctx, log, false)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stack.close()

			qa, err := newAgent(chatModel, stack.retriever)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise agent: %w", err)
			}

			// Flags win over env; SERVER_HOST and SERVER_PORT are fed by the
			// config file layer.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			srv, err := server.New(qa, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(chatModel, providerCfg, stack),
				APIKey:  os.Getenv("MCQA_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
