// Package cli provides the command-line interface for CortexFolio
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Run starts the CLI application
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		DisplayError(os.Stderr, err)
		stop()
		os.Exit(exitCode(err))
	}
}
