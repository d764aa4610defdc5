package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"MarketRadar/internal/app"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the feed until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(runCtx, ctx.ensureConfig(), ctx.logger())
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Run(runCtx)
		},
	}
}

func newOnceCommand(ctx *commandContext) *cobra.Command {
	var flush bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single scan cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(runCtx, ctx.ensureConfig(), ctx.logger())
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Once(runCtx, flush)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, new %d, buffered %d, batches %d, saved %d\n",
				report.Fetched, report.Fresh, report.Buffered, report.Batches, report.Persisted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flush, "flush", false, "Classify a partial batch instead of discarding it")
	return cmd
}

// contextOrBackground keeps commands usable when executed without ExecuteContext.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
