package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/nasa-explorer/explorer/pkg/storage"
)

// NewUsersCmd creates the users command group.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect registered users",
	}
	cmd.AddCommand(newUsersListCmd())
	return cmd
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every user as JSON lines",
		Long:  `Print every registered user, oldest first, one JSON object per line. Password digests are never printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			store, err := openStore(ctx, cfg.Storage, nil, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			return listUsers(ctx, store, cmd.OutOrStdout())
		},
	}
}

func listUsers(ctx context.Context, store storage.UserStore, out io.Writer) error {
	users, err := store.ListAll(ctx)
	if err != nil {
		return oops.Code("STORE_QUERY_FAILED").With("op", "list_all").Wrap(err)
	}

	enc := json.NewEncoder(out)
	for _, u := range users {
		if err := enc.Encode(u.Public()); err != nil {
			return err
		}
	}
	return nil
}
