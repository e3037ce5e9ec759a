package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"opsdesk/internal/database"
	"opsdesk/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Runs the HTTP API until SIGINT or SIGTERM, then drains in-flight requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, db, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if err := database.Migrate(db); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, cfg, db, logger)
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "Migrate the schema before serving")
	rootCmd.AddCommand(serveCmd)
}
