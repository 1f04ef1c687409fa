package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/varoOP/animesync/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon",
	Long: `Run starts the background sync daemon:
1. Serves the local control endpoint (control messages, actions, cache, events, metrics)
2. Starts periodic sync when a server is connected and the user is logged in
3. Replays queued actions then refreshes the cache from the server on every cycle

The daemon stops on SIGINT or SIGTERM. Queued actions survive restarts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withApp(func(a *app.App) error {
			if err := a.Run(ctx); err != nil {
				return fmt.Errorf("run failed: %w", err)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
