package segmenter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/config"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/streaming"
)

// ErrSourceMissing is returned when the audio file does not exist.
var ErrSourceMissing = errors.New("source file missing")

// FFmpegSegmenter implements streaming.Segmenter by running FFmpeg once per
// requested bitrate into a scratch directory and reading the result back.
type FFmpegSegmenter struct {
	binary          string
	workDir         string
	timeout         time.Duration
	segmentDuration int
	log             zerolog.Logger
	run             runner
	now             func() time.Time
	lookPath        func(string) (string, error)
	freeSpace       func(string) (uint64, error)
}

// New creates a segmenter producing segmentDuration-second segments.
func New(cfg config.SegmenterConfig, segmentDuration int) *FFmpegSegmenter {
	binary := cfg.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	workDir := cfg.OutputDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "broadcaster")
	}
	return &FFmpegSegmenter{
		binary:          binary,
		workDir:         workDir,
		timeout:         cfg.Timeout,
		segmentDuration: segmentDuration,
		log:             logger.Component("segmenter"),
		run:             runFFmpeg,
		now:             time.Now,
		lookPath:        exec.LookPath,
		freeSpace:       availableSpace,
	}
}

// WorkDir returns the scratch directory root
func (s *FFmpegSegmenter) WorkDir() string { return s.workDir }

// Slice encodes filePath at every bitrate. A zero-length source yields an
// empty result without error; any other problem is an error.
func (s *FFmpegSegmenter) Slice(ctx context.Context, meta streaming.SongMetadata, filePath string, bitrates []int) (map[int][]streaming.Segment, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, filePath)
		}
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}

	result := make(map[int][]streaming.Segment, len(bitrates))
	if info.Size() == 0 {
		for _, br := range bitrates {
			result[br] = nil
		}
		return result, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	runDir, err := createWorkDir(s.workDir)
	if err != nil {
		return nil, err
	}
	defer removeWorkDir(runDir)

	started := s.now()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, br := range bitrates {
		g.Go(func() error {
			segs, err := s.sliceOne(gctx, meta, filePath, filepath.Join(runDir, strconv.Itoa(br)), br)
			if err != nil {
				return fmt.Errorf("bitrate %d: %w", br, err)
			}
			mu.Lock()
			result[br] = segs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("file", filePath).
		Str("song", meta.String()).
		Ints("bitrates", bitrates).
		Dur("elapsed", s.now().Sub(started)).
		Msg("Sliced fragment")
	return result, nil
}

func (s *FFmpegSegmenter) sliceOne(ctx context.Context, meta streaming.SongMetadata, filePath, dir string, bitrate int) ([]streaming.Segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryCreation, err)
	}

	cmd, err := BuildSliceCommand(SliceParams{
		InputFile:       filePath,
		OutputDir:       dir,
		Bitrate:         bitrate,
		SegmentDuration: s.segmentDuration,
	})
	if err != nil {
		return nil, err
	}
	if err := s.run(ctx, s.binary, cmd, s.log); err != nil {
		return nil, err
	}

	return s.readRendition(dir, meta, bitrate)
}

// readRendition loads the segments FFmpeg listed in dir's playlist.
func (s *FFmpegSegmenter) readRendition(dir string, meta streaming.SongMetadata, bitrate int) ([]streaming.Segment, error) {
	f, err := os.Open(PlaylistPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open rendition playlist: %w", err)
	}
	defer f.Close()

	entries, err := parsePlaylist(f)
	if err != nil {
		return nil, err
	}

	name := meta.String()
	now := s.now()
	segs := make([]streaming.Segment, 0, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.File))
		if err != nil {
			return nil, fmt.Errorf("failed to read segment %s: %w", e.File, err)
		}
		segs = append(segs, streaming.Segment{
			Timestamp: now,
			Data:      data,
			Duration:  e.Duration,
			Size:      len(data),
			Bitrate:   bitrate,
			SongName:  name,
		})
	}
	return segs, nil
}
