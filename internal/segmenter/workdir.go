package segmenter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
)

const workDirPrefix = "slice-"

// ErrDirectoryCreation is returned when a work directory cannot be created.
var ErrDirectoryCreation = fmt.Errorf("failed to create directory")

// createWorkDir makes a private directory under baseDir for one slicing run.
func createWorkDir(baseDir string) (string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDirectoryCreation, err)
	}
	dir, err := os.MkdirTemp(baseDir, workDirPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDirectoryCreation, err)
	}
	return dir, nil
}

// removeWorkDir deletes a run directory and everything in it.
func removeWorkDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove slicing work directory")
	}
}

// SweepStaleWorkDirs removes run directories older than maxAge left behind
// by a crashed process and returns how many were removed. Directories not
// created by the segmenter are skipped.
func SweepStaleWorkDirs(baseDir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read work directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), workDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			logger.Log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove stale work directory")
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Log.Info().
			Int("removed", removed).
			Str("base_dir", baseDir).
			Msg("Stale slicing directories cleaned up")
	}
	return removed, nil
}
