package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/animesync/internal/app"
	"github.com/varoOP/animesync/internal/domain"
)

var planningCmd = &cobra.Command{
	Use:   "planning",
	Short: "List the catalog's weekly planning with queued state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			base, entries, err := a.Planning(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Planning from %s (%d cards)\n", base, len(entries))
			for _, e := range entries {
				mark := " "
				if e.Queued {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-28s %-40s %s\n", mark, domain.Location(e.Day), e.Title, e.Key)
			}
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <page-url>",
	Short: "Report whether a page is a supported catalog page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			ok, base := a.Supported(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("%s is not a supported page of %s", args[0], base)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is supported\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(planningCmd, checkCmd)
}
