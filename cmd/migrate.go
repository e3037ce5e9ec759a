package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opsdesk/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, db, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("schema migrated", zap.Int("tables", len(database.All())))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
