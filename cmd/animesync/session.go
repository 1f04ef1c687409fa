package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/varoOP/animesync/internal/app"
)

var connectCmd = &cobra.Command{
	Use:   "connect <server-url>",
	Short: "Connect to a companion server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			session, err := a.Connect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", session.ServerURL)
			if !session.LoggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), "Run 'animesync login' to start syncing.")
			}
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in to the connected companion server",
	Long: `Login authenticates against the companion server and starts periodic sync
in the running daemon. The password is read from --password or the
ANIMESYNC_PASSWORD environment variable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := viper.GetString("password")
		if password == "" {
			return fmt.Errorf("password is required (set --password or ANIMESYNC_PASSWORD)")
		}

		return withApp(func(a *app.App) error {
			session, err := a.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", session.LastUser)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and stop periodic sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := a.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out. Queued actions are kept until the next login.")
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show companion server information, theme and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			info, err := a.Info(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "App:        %s\n", info.AppInfo.AppName)
			fmt.Fprintf(out, "Catalog:    %s\n", info.AppInfo.AnimeSamaURL)
			if info.AppInfo.LocalDashboardPort != 0 {
				fmt.Fprintf(out, "Dashboard:  port %d\n", info.AppInfo.LocalDashboardPort)
			}
			if info.Theme != nil {
				fmt.Fprintf(out, "Theme:      %s\n", info.Theme.Theme)
				names := make([]string, 0, len(info.Theme.Colors))
				for name := range info.Theme.Colors {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  %s: %v\n", name, info.Theme.Colors[name])
				}
			}
			if info.Dashboard != nil {
				fmt.Fprintf(out, "\n%s\n%s\n", info.Dashboard.Data.Title, info.Dashboard.Data.Message)
			}
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().String("password", "", "password for the companion server")
	viper.BindPFlag("password", loginCmd.Flags().Lookup("password"))

	rootCmd.AddCommand(connectCmd, loginCmd, logoutCmd, infoCmd)
}
