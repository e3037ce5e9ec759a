// Package cmd contains the opsdesk CLI commands, built using the Cobra library.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opsdesk/internal/config"
	"opsdesk/internal/database"
	"opsdesk/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "opsdesk",
	Short: "Multi-tenant HR, CRM and project operations backend.",
	Long: `opsdesk serves the HTTP API for employees, recruiting, leads, projects
and sprints, with per-tenant roles, workflows and plan entitlements.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}

// setup loads the config, builds the logger and opens the database shared by
// every subcommand.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, *gorm.DB, error) {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.Open(&cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", zap.String("driver", cfg.Database.Driver))
	return cfg, logger, db, nil
}
