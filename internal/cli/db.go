package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/suiterun/internal/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "History database management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		// openStore migrates on open.
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return errors.New("refusing to drop run history without --force")
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("reset database: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Run history cleared.")
		return nil
	},
}

func openStore(ctx context.Context) (db.Store, error) {
	store, err := db.Open(ctx, resolveDSN())
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return store, nil
}

func init() {
	dbResetCmd.Flags().Bool("force", false, "Confirm dropping all run history")

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
