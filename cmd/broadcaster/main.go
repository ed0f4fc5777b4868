package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/config"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
)

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "broadcaster",
	Short: "Live HLS radio broadcaster",
	Long:  "Broadcaster turns a catalog of audio files into continuous live HLS streams, one per station.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and initializes the logger
func loadConfig() error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	return nil
}

// openDatabase opens the catalog and applies pending migrations
func openDatabase() (*db.DB, error) {
	database, err := db.Open(db.Options{
		Path:        cfg.Database.Path,
		PingTimeout: cfg.Database.ConnectionTimeout,
		EnableWAL:   cfg.Database.EnableWAL,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.SQLDB()
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		_ = database.Close()
		return nil, err
	}

	logger.Log.Info().Str("path", cfg.Database.Path).Msg("Catalog database ready")
	return database, nil
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
