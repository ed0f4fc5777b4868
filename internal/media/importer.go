package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// Supported audio file extensions
var supportedAudioFormats = []string{".mp3", ".flac", ".ogg", ".oga", ".opus", ".m4a", ".aac", ".wav"}

const defaultProbeWorkers = 4

// ErrInvalidDirectory is returned when the library path is not a readable directory.
var ErrInvalidDirectory = errors.New("invalid directory path")

// FragmentStore is the catalog subset the importer writes to
type FragmentStore interface {
	Create(ctx context.Context, fragment *models.SoundFragment) error
	GetByPath(ctx context.Context, stationID uuid.UUID, filePath string) (*models.SoundFragment, error)
	Update(ctx context.Context, fragment *models.SoundFragment) error
}

// ImportReport summarizes one library import
type ImportReport struct {
	StationID  uuid.UUID `json:"station_id"`
	Directory  string    `json:"directory"`
	TotalFiles int       `json:"total_files"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// ImportOptions tune an import run
type ImportOptions struct {
	ContentType models.ContentType // defaults to SONG
	Workers     int                // concurrent ffprobe runs
}

// Importer walks an audio library and registers every playable file as a
// sound fragment of a station. Re-importing updates existing entries in
// place, so play statistics survive.
type Importer struct {
	store    FragmentStore
	prober   Prober
	readTags func(path string) (*EmbeddedTags, error)
	mu       sync.Mutex // serializes catalog writes
}

// NewImporter creates an importer writing to store
func NewImporter(store FragmentStore, prober Prober) *Importer {
	return &Importer{store: store, prober: prober, readTags: ReadEmbeddedTags}
}

// Import scans dirPath recursively. Per-file problems are recorded in the
// report; only an unusable directory or cancellation fails the import.
func (im *Importer) Import(ctx context.Context, stationID uuid.UUID, dirPath string, opts ImportOptions) (*ImportReport, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory does not exist", ErrInvalidDirectory)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDirectory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: path is not a directory", ErrInvalidDirectory)
	}

	if opts.ContentType == "" {
		opts.ContentType = models.ContentSong
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultProbeWorkers
	}

	report := &ImportReport{
		StationID: stationID,
		Directory: dirPath,
		Errors:    []string{},
		StartTime: time.Now().UTC(),
	}

	files, err := im.findAudioFiles(ctx, dirPath, report)
	if err != nil {
		return nil, err
	}
	report.TotalFiles = len(files)

	logger.Log.Info().
		Str("station_id", stationID.String()).
		Str("directory", dirPath).
		Int("total_files", len(files)).
		Msg("Found audio files to import")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, path := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			im.processFile(gctx, stationID, path, opts.ContentType, report)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("import cancelled: %w", err)
	}

	report.EndTime = time.Now().UTC()
	logger.Log.Info().
		Str("station_id", stationID.String()).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Dur("elapsed", report.EndTime.Sub(report.StartTime)).
		Msg("Library import finished")
	return report, nil
}

// findAudioFiles walks the directory tree and returns audio file paths in
// lexical order
func (im *Importer) findAudioFiles(ctx context.Context, dirPath string, report *ImportReport) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Log.Warn().Str("path", path).Err(err).Msg("Error during directory walk")
			im.recordError(report, fmt.Sprintf("error accessing path %s: %v", path, err), false)
			return nil
		}
		if !d.IsDir() && isAudioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory walk failed: %w", err)
	}
	return files, nil
}

func (im *Importer) processFile(ctx context.Context, stationID uuid.UUID, filePath string, contentType models.ContentType, report *ImportReport) {
	if v := ValidateFile(filePath); !v.Readable {
		im.fileError(report, filePath, fmt.Errorf("file not readable: %s", strings.Join(v.Reasons, ", ")))
		return
	}

	metadata, err := im.prober.Probe(ctx, filePath)
	if err != nil {
		im.fileError(report, filePath, fmt.Errorf("ffprobe failed: %w", err))
		return
	}

	v := ValidateAudio(metadata)
	if !v.Playable {
		im.fileError(report, filePath, fmt.Errorf("not playable: %s", strings.Join(v.Reasons, ", ")))
		return
	}
	if v.Unusual {
		logger.Log.Debug().Str("file", filePath).Strs("reasons", v.Reasons).Msg("Unusual audio file")
	}

	title, artist := im.describe(filePath, metadata)

	fragment := models.NewSoundFragment(stationID, title, artist, filePath)
	fragment.ContentType = contentType
	fragment.Duration = metadata.Duration

	created, err := im.upsert(ctx, fragment)
	if err != nil {
		im.fileError(report, filePath, fmt.Errorf("database operation failed: %w", err))
		return
	}

	im.mu.Lock()
	if created {
		report.Created++
	} else {
		report.Updated++
	}
	im.mu.Unlock()
}

// describe picks title and artist from container tags reported by ffprobe,
// then tags embedded in the file, then the file name.
func (im *Importer) describe(filePath string, metadata *AudioMetadata) (string, string) {
	title, artist := metadata.Title, metadata.Artist
	if title != "" && artist != "" {
		return title, artist
	}

	if embedded, err := im.readTags(filePath); err == nil {
		if title == "" {
			title = embedded.Title
		}
		if artist == "" {
			artist = embedded.Artist
		}
	}

	parsed := ParseFilename(filePath)
	if title == "" {
		title = parsed.Title
	}
	if artist == "" {
		artist = parsed.Artist
	}
	return title, artist
}

// upsert creates the fragment, or updates the existing entry for the same
// station and path. Uses optimistic insert to avoid check-then-insert races.
func (im *Importer) upsert(ctx context.Context, fragment *models.SoundFragment) (bool, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	err := im.store.Create(ctx, fragment)
	if err == nil {
		return true, nil
	}
	if !db.IsDuplicate(err) {
		return false, err
	}

	existing, err := im.store.GetByPath(ctx, fragment.StationID, fragment.FilePath)
	if err != nil {
		return false, fmt.Errorf("failed to fetch existing fragment after duplicate: %w", err)
	}
	fragment.ID = existing.ID
	fragment.CreatedAt = existing.CreatedAt
	return false, im.store.Update(ctx, fragment)
}

func (im *Importer) fileError(report *ImportReport, filePath string, err error) {
	logger.Log.Warn().Str("file", filePath).Err(err).Msg("Failed to import audio file")
	im.recordError(report, fmt.Sprintf("%s: %v", filePath, err), true)
}

func (im *Importer) recordError(report *ImportReport, msg string, failed bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	report.Errors = append(report.Errors, msg)
	if failed {
		report.Failed++
	}
}

// isAudioFile checks if a file has a supported audio extension
func isAudioFile(path string) bool {
	return slices.Contains(supportedAudioFormats, strings.ToLower(filepath.Ext(path)))
}
