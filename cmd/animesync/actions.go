package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/animesync/internal/app"
	"github.com/varoOP/animesync/internal/domain"
)

var addCmd = &cobra.Command{
	Use:   "add <anime-url>",
	Short: "Queue an anime season for download",
	Long: `Add marks the season as queued right away and replays the request
against the companion server in the background. With --day the season is
added to auto_download for that weekday, otherwise to single_download.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, _ := cmd.Flags().GetString("day")
		if day != "" {
			if _, ok := domain.ParseDay(day); !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown day %q, using single_download\n", day)
				day = ""
			}
		}
		return act(cmd, domain.ActionAdd, args[0], day)
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <anime-url>",
	Aliases: []string{"rm"},
	Short:   "Remove an anime season from the download queue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return act(cmd, domain.ActionRemove, args[0], "")
	},
}

func act(cmd *cobra.Command, kind domain.ActionKind, rawURL, day string) error {
	return withApp(func(a *app.App) error {
		receipt, err := a.Act(cmd.Context(), kind, rawURL, day)
		if err != nil {
			return fmt.Errorf("%s failed: %w", kind, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", receipt.Key, receipt.Message)
		return nil
	})
}

func init() {
	addCmd.Flags().String("day", "", "weekday for auto_download (lundi..dimanche or english names)")
	rootCmd.AddCommand(addCmd, removeCmd)
}
