package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the nasa-explorer CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nasa-explorer",
		Short: "NASA Explorer - accounts and NASA API proxy",
		Long: `NASA Explorer serves user registration, login and a token gated
proxy to the NASA open APIs for the explorer frontend.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUsersCmd())

	return cmd
}
