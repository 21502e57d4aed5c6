// Command team-report inspects athlete CSVs and renders their PDF reports
// offline, without the HTTP service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/perfreport/internal/adapters/mq/worker"
	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/pkg/logger"
)

// rendererFactory builds the renderer used by generate.
type rendererFactory func(chromePath string, timeout time.Duration) worker.Renderer

func chromiumRenderer(chromePath string, timeout time.Duration) worker.Renderer {
	return report.NewGenerator(report.NewChromiumRenderer(chromePath, timeout))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(chromiumRenderer).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(renderers rendererFactory) *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "team-report",
		Short: "Inspect athlete CSVs and render their performance reports",
		Long: `team-report reads a CSV of athlete physical-test results, maps its columns
onto the known metrics and renders one PDF report per athlete.

The same structural limits and cell sanitization as the web service apply.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.AddCommand(newInspectCmd(), newGenerateCmd(renderers))
	return root
}
