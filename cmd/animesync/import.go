package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/animesync/internal/app"
)

var importCmd = &cobra.Command{
	Use:   "import-extension <storage.json>",
	Short: "Import the browser extension's local storage",
	Long: `Import a JSON dump of the extension's local storage into the database.
The animeList replaces the cache and every entry of actionQueue is appended
to the outbox in order, to be replayed on the next sync.

This is a one-time migration command. Run it while the daemon is stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			stats, err := a.ImportExtension(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Import complete!\n")
			fmt.Printf("  Cached anime:   %d\n", stats.Keys)
			fmt.Printf("  Queued actions: %d\n", stats.Actions)
			if stats.Skipped > 0 {
				fmt.Printf("  Skipped:        %d invalid entries\n", stats.Skipped)
			}
			fmt.Println()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
