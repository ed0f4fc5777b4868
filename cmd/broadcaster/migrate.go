package main

import (
	"github.com/spf13/cobra"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending catalog migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	logger.Log.Info().Str("migrations", cfg.Database.MigrationsPath).Msg("Migrations applied")
	return nil
}
