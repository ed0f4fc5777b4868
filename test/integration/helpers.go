//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/config"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/events"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/media"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/metrics"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/scheduler"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/server"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/streaming"
)

// setupTestDB creates an in-memory test database with migrations applied
func setupTestDB(t *testing.T) (*db.DB, *db.Repositories) {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err, "Failed to create in-memory database")
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.SQLDB()
	require.NoError(t, err, "Failed to get SQL DB")

	// Resolve migrations relative to this file so tests work from any directory
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")
	rootDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))

	err = db.RunMigrations(sqlDB, filepath.Join(rootDir, "migrations"))
	require.NoError(t, err, "Failed to run migrations")

	return database, db.NewRepositories(database)
}

// fastConfig ticks every timer quickly so a station fills within a test
func fastConfig() *config.Config {
	bc := config.Defaults()
	bc.FeedInterval = 20 * time.Millisecond
	bc.SlideInterval = 50 * time.Millisecond
	bc.SelfManagingDelay = 10 * time.Millisecond
	bc.SelfManagingInterval = 100 * time.Millisecond
	bc.DripPerTick = 2

	return &config.Config{
		Logging:    config.LoggingConfig{Level: "info"},
		Broadcast:  bc,
		Segmenter:  config.SegmenterConfig{Timeout: time.Minute},
		Inactivity: config.InactivityConfig{Interval: time.Hour},
	}
}

// setupTestServer wires a server over database with a canned segmenter
func setupTestServer(t *testing.T, database *db.DB, bus events.Publisher) *server.Server {
	t.Helper()

	rt := scheduler.New(4)
	srv := server.New(fastConfig(), database, server.Deps{
		Segmenter: &stubSegmenter{segments: 4},
		Runtime:   rt,
		Events:    bus,
		Metrics:   metrics.New(),
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Pool().StopAll(ctx)
		_ = rt.Close(ctx)
	})
	return srv
}

// stubSegmenter returns segments payload-tagged with the song name
type stubSegmenter struct {
	mu       sync.Mutex
	segments int
	calls    int
}

func (s *stubSegmenter) Slice(_ context.Context, meta streaming.SongMetadata, _ string, bitrates []int) (map[int][]streaming.Segment, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	out := make(map[int][]streaming.Segment, len(bitrates))
	for _, br := range bitrates {
		segs := make([]streaming.Segment, s.segments)
		for i := range segs {
			data := []byte(meta.String())
			segs[i] = streaming.Segment{
				Timestamp: time.Now(),
				Data:      data,
				Duration:  10,
				Size:      len(data),
				Bitrate:   br,
			}
		}
		out[br] = segs
	}
	return out, nil
}

// stubProber reports every file as a three minute mp3
type stubProber struct{}

func (stubProber) Probe(_ context.Context, _ string) (*media.AudioMetadata, error) {
	return &media.AudioMetadata{Duration: 180, Codec: "mp3", BitRate: 128000, SampleRate: 44100, Channels: 2}, nil
}

// createLibrary writes dummy audio files named "Artist - Title.mp3"
func createLibrary(t *testing.T, names ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, name := range names {
		err := os.WriteFile(filepath.Join(dir, name+".mp3"), []byte("dummy audio content"), 0600)
		require.NoError(t, err, "Failed to create dummy audio file: %s", name)
	}
	return dir
}
