package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sqlstore "github.com/aretw0/furrow/pkg/adapters/sql"
	"github.com/aretw0/furrow/pkg/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the catalog schema to the configured database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.Backend == config.BackendMemory {
			fmt.Fprintln(cmd.OutOrStdout(), "memory backend: nothing to migrate")
			return nil
		}
		cfg.Store.Migrate = true

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		store, ok := s.Store().(*sqlstore.Store)
		if !ok {
			return fmt.Errorf("unexpected store %T", s.Store())
		}
		v, err := store.MigrationVersion(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), map[string]any{
			"backend": cfg.Store.Backend,
			"version": v,
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
