package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/events"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/metrics"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/scheduler"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/segmenter"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/server"
)

var serveStations []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the broadcaster",
	Long:  "Start the HTTP server, the station pool and the background timers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringSliceVar(&serveStations, "station", nil, "Station slug to put on air at startup (repeatable)")
}

// eventBus is a publisher that may hold a connection
type eventBus interface {
	events.Publisher
	Close() error
}

type localBus struct{ *events.Bus }

func (localBus) Close() error { return nil }

func openEventBus(ctx context.Context) eventBus {
	if cfg.Events.RedisAddr == "" {
		return localBus{events.NewBus()}
	}

	bus, err := events.NewRedisBus(ctx, events.RedisConfig{
		Addr:          cfg.Events.RedisAddr,
		Password:      cfg.Events.RedisPassword,
		DB:            cfg.Events.RedisDB,
		DialTimeout:   cfg.Events.DialTimeout,
		ChannelPrefix: cfg.Events.ChannelPrefix,
	}, logger.Component("events"))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, events stay in process")
		return localBus{events.NewBus()}
	}
	return bus
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Log.Info().Str("version", version).Msg("Broadcaster starting")

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	seg := segmenter.New(cfg.Segmenter, cfg.Broadcast.SegmentDuration)
	if err := seg.Preflight(); err != nil {
		return fmt.Errorf("segmenter preflight: %w", err)
	}
	if removed, err := segmenter.SweepStaleWorkDirs(seg.WorkDir(), cfg.Segmenter.Timeout); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to sweep stale work directories")
	} else if removed > 0 {
		logger.Log.Info().Int("removed", removed).Msg("Removed stale work directories")
	}

	bus := openEventBus(cmd.Context())
	rt := scheduler.New(cfg.Broadcast.Workers)

	srv := server.New(cfg, database, server.Deps{
		Segmenter: seg,
		Runtime:   rt,
		Events:    bus,
		Metrics:   metrics.New(),
	})
	srv.StartStations(cmd.Context(), serveStations)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
		logger.Log.Info().Msg("Shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Log.Error().Err(serveErr).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if err := rt.Close(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Runtime did not stop in time")
	}
	if err := bus.Close(); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to close event bus")
	}

	logger.Log.Info().Msg("Broadcaster stopped")
	return serveErr
}
