package segmenter

import (
	"errors"
	"fmt"
	"os"
)

const (
	// MinDiskSpaceBytes is the free space a slicing run needs in the work directory.
	MinDiskSpaceBytes = 200 * 1024 * 1024
	// WarnDiskSpaceBytes logs a warning below this much free space.
	WarnDiskSpaceBytes = 1024 * 1024 * 1024
)

var (
	ErrFFmpegNotFound    = errors.New("ffmpeg not found")
	ErrInsufficientSpace = errors.New("insufficient disk space")
)

// Preflight checks that the ffmpeg binary resolves and the work directory
// has room for slicing output. It is run once at startup.
func (s *FFmpegSegmenter) Preflight() error {
	if _, err := s.lookPath(s.binary); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, s.binary)
	}
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrDirectoryCreation, err)
	}
	return s.checkDiskSpace()
}

func (s *FFmpegSegmenter) checkDiskSpace() error {
	available, err := s.freeSpace(s.workDir)
	if err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}
	if available < MinDiskSpaceBytes {
		return fmt.Errorf("%w: %d bytes available, %d bytes required",
			ErrInsufficientSpace, available, uint64(MinDiskSpaceBytes))
	}
	if available < WarnDiskSpaceBytes {
		s.log.Warn().
			Uint64("available_bytes", available).
			Uint64("warning_threshold", WarnDiskSpaceBytes).
			Str("path", s.workDir).
			Msg("Disk space below warning threshold")
	}
	return nil
}
