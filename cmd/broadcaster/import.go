package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/catalog"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/media"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import audio files into a station's catalog",
	Long:  "Walk a directory, probe every audio file with ffprobe and add or update its catalog entry",
	RunE:  runImport,
}

// import flags
var (
	importStation     string
	importDir         string
	importContentType string
	importWorkers     int
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importStation, "station", "", "Station slug (required)")
	importCmd.Flags().StringVar(&importDir, "dir", "", "Directory to import (required)")
	importCmd.Flags().StringVar(&importContentType, "content-type", string(models.ContentSong), "Content type: SONG, ADVERTISEMENT or JINGLE")
	importCmd.Flags().IntVar(&importWorkers, "workers", 4, "Concurrent ffprobe runs")
	importCmd.MarkFlagRequired("station")
	importCmd.MarkFlagRequired("dir")
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	contentType := models.ContentType(strings.ToUpper(strings.TrimSpace(importContentType)))
	switch contentType {
	case models.ContentSong, models.ContentAdvertisement, models.ContentJingle:
	default:
		return fmt.Errorf("%w: content type %q", db.ErrInvalidInput, importContentType)
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	repos := db.NewRepositories(database)
	station, err := catalog.NewService(repos).GetStation(cmd.Context(), importStation)
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("station", station.Slug).
		Str("dir", importDir).
		Str("content_type", string(contentType)).
		Msg("Starting import")

	importer := media.NewImporter(repos.SoundFragments, media.FFprobe{Binary: cfg.Segmenter.FFprobePath})
	report, err := importer.Import(cmd.Context(), station.ID, importDir, media.ImportOptions{
		ContentType: contentType,
		Workers:     importWorkers,
	})
	if err != nil {
		return fmt.Errorf("import %s: %w", importDir, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nImport complete:\n")
	fmt.Fprintf(out, "  Files:    %d\n", report.TotalFiles)
	fmt.Fprintf(out, "  Created:  %d\n", report.Created)
	fmt.Fprintf(out, "  Updated:  %d\n", report.Updated)
	fmt.Fprintf(out, "  Failed:   %d\n", report.Failed)
	fmt.Fprintf(out, "  Duration: %s\n", report.EndTime.Sub(report.StartTime).Round(time.Millisecond))
	for _, msg := range report.Errors {
		fmt.Fprintf(out, "  - %s\n", msg)
	}
	return nil
}
