package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/animesync/internal/app"
	"github.com/varoOP/animesync/internal/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync cycle now",
	Long: `Sync asks the running daemon for an immediate cycle (forceSync). When no
daemon answers, the cycle runs in this process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, domain.MsgForceSync)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start periodic sync in the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, domain.MsgStartSync)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop periodic sync in the running daemon",
	Long:  `Stop cancels the periodic and pending syncs. Queued actions are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, domain.MsgStopSync)
	},
}

func control(cmd *cobra.Command, msg domain.ControlMessage) error {
	return withApp(func(a *app.App) error {
		if err := a.Control(cmd.Context(), msg); err != nil {
			return fmt.Errorf("%s failed: %w", msg, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", msg)
		return nil
	})
}

func init() {
	rootCmd.AddCommand(syncCmd, startCmd, stopCmd)
}
