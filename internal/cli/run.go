package cli

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/filerelay/internal/logging"
	"github.com/hupe1980/filerelay/internal/relay"
	"github.com/hupe1980/filerelay/internal/watch"
)

type runOptions struct {
	relayConfig string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay event loop",
		Long: `Run loads the relay document, installs a read-access watch for every
declared trigger, evaluates each trigger once so targets reflect the
current on-disk state, and then blocks relaying events until the
process is terminated.

The relay document is read exactly once; edits to it while the relay
is running are reported but take effect only after a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.relayConfig, "relay-config", "r", "", "relay document declaring triggers and actions (TOML or YAML, required)")
	_ = cmd.MarkFlagRequired("relay-config")

	return cmd
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	doc, err := relay.LoadDocument(opts.relayConfig)
	if err != nil {
		return &ExitError{Code: exitCodeDocument, Err: err}
	}

	if dump, dumpErr := doc.Dump(); dumpErr == nil {
		logger.Debug("relay document", slog.String("document", dump))
	}

	logger.Info("relay document loaded",
		slog.String("path", doc.Path),
		slog.Int("triggers", len(doc.Triggers)),
		slog.Int("actions", len(doc.Actions)),
	)

	service, err := watch.New()
	if err != nil {
		return fmt.Errorf("starting watch service: %w", err)
	}
	defer service.Close()

	// Trap SIGINT / SIGTERM for graceful shutdown.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := relay.NewEngine(doc, service, relay.WithDocumentNotice(doc.Path))

	return engine.Run(sigCtx)
}
