package main

import (
	"context"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply pending goose migrations for the postgres and sqlite backends,
or create the users indexes for the mongo backend.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.Println("Connecting to user store...")
	store, err := openStore(ctx, cfg.Storage, nil, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cmd.Println("Running migrations...")
	if err := prepareStore(ctx, store, logger); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
