package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/varoOP/animesync/internal/app"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"list"},
	Short:   "Show the session and the cached download queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			session, err := a.Session(ctx)
			if err != nil {
				return fmt.Errorf("failed to read session: %w", err)
			}
			snap, err := a.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to read cache: %w", err)
			}

			server := session.ServerURL
			if server == "" {
				server = "(none)"
			}
			fmt.Fprintf(out, "Server:    %s\n", server)
			fmt.Fprintf(out, "Logged in: %v", session.LoggedIn)
			if session.LastUser != "" {
				fmt.Fprintf(out, " (%s)", session.LastUser)
			}
			fmt.Fprintln(out)

			synced := "never"
			if !snap.LastSyncedAt.IsZero() {
				synced = snap.LastSyncedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(out, "Synced:    %s\n", synced)
			fmt.Fprintf(out, "Pending:   %d\n", snap.Pending)
			fmt.Fprintf(out, "Queued:    %d\n", len(snap.Keys))
			for _, k := range snap.Keys {
				fmt.Fprintf(out, "  %s\n", k)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
