// Package cmd defines and implements the CLI commands for the squidctl
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lobstr-tools/squidctl/internal/orchestrator"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "squidctl",
		Short: "Drive lobstr.io squid runs from the command line",
		Long: `squidctl drives the full lifecycle of a lobstr.io scraping job ("squid"):
it creates and configures the squid, uploads a CSV/TSV task file, starts a
run, waits for completion and export, and downloads the resulting dataset.

The API credential is read from the LOBSTR_API_KEY environment variable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point. It is the only place that converts
// errors into process exit codes: zero for a full success or the
// deliberate no-tasks early exit, non-zero for everything else.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, orchestrator.ErrNoTasks):
		fmt.Println("No tasks file provided. Exiting.")
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Operation cancelled.")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
