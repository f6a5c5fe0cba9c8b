package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "helpdeskctl",
		Short:        "Helpdesk operations tool",
		Long:         `helpdeskctl runs the helpdesk background jobs on demand and performs operator actions on the notification outbox.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newOutboxCommand(),
		newSLACommand(),
		newReportsCommand(),
		newMigrateCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
