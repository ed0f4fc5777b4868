//go:build integration
// +build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/events"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/media"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

func request(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// segmentURIs returns the media URIs listed in a manifest
func segmentURIs(manifest string) []string {
	var uris []string
	sc := bufio.NewScanner(strings.NewReader(manifest))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			uris = append(uris, line)
		}
	}
	return uris
}

// TestSelfManagedStationGoesOnAir imports a library and lets the station
// refill, feed and serve on its own timers
func TestSelfManagedStationGoesOnAir(t *testing.T) {
	database, repos := setupTestDB(t)
	ctx := context.Background()

	station := models.NewStation("rock", "Rock FM", models.ManagedByItself, 128000)
	require.NoError(t, repos.Stations.Create(ctx, station))

	dir := createLibrary(t, "Led Zeppelin - Kashmir", "Deep Purple - Highway Star", "Rush - YYZ")
	report, err := media.NewImporter(repos.SoundFragments, stubProber{}).Import(ctx, station.ID, dir, media.ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, report.Created, "errors: %v", report.Errors)

	bus := events.NewBus()
	nowPlaying := bus.Subscribe(events.EventNowPlaying)

	srv := setupTestServer(t, database, bus)
	router := srv.Router()

	w := request(router, http.MethodPost, "/api/stations/rock/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var manifest string
	require.Eventually(t, func() bool {
		w := request(router, http.MethodGet, "/rock/radio/stream.m3u8", nil)
		manifest = w.Body.String()
		return w.Code == http.StatusOK && strings.Contains(manifest, "#EXTINF")
	}, 5*time.Second, 20*time.Millisecond, "station never went on air")

	uris := segmentURIs(manifest)
	require.NotEmpty(t, uris)
	assert.True(t, strings.HasPrefix(uris[0], "segments/rock_"))

	w = request(router, http.MethodGet, "/rock/radio/"+uris[0], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.Bytes())

	select {
	case ev := <-nowPlaying:
		assert.Equal(t, "rock", ev["station"])
	case <-time.After(5 * time.Second):
		t.Fatal("no now-playing event published")
	}

	require.Eventually(t, func() bool {
		songs, err := repos.SoundFragments.GetBrandSongs(ctx, station.ID, models.ContentSong, 10, nil)
		if err != nil {
			return false
		}
		for _, s := range songs {
			if s.PlayedCount > 0 {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond, "play was never recorded")

	w = request(router, http.MethodGet, "/api/stations/rock/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(router, http.MethodPost, "/api/stations/rock/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestCuratedStationPlaysQueuedFragment checks a DJ station stays silent
// until a fragment is queued for it
func TestCuratedStationPlaysQueuedFragment(t *testing.T) {
	database, repos := setupTestDB(t)
	ctx := context.Background()

	station := models.NewStation("jazz", "Jazz FM", models.ManagedByDJ, 128000)
	require.NoError(t, repos.Stations.Create(ctx, station))
	song := models.NewSoundFragment(station.ID, "So What", "Miles Davis", "/music/so_what.mp3")
	require.NoError(t, repos.SoundFragments.Create(ctx, song))

	srv := setupTestServer(t, database, nil)
	router := srv.Router()

	w := request(router, http.MethodPost, "/api/stations/jazz/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	time.Sleep(100 * time.Millisecond)
	w = request(router, http.MethodGet, "/jazz/radio/stream.m3u8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "#EXTINF")

	w = request(router, http.MethodPost, "/api/stations/jazz/queue", map[string]any{
		"fragment_id": song.ID.String(),
		"priority":    "interrupt",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		w := request(router, http.MethodGet, "/jazz/radio/stream.m3u8", nil)
		return strings.Contains(w.Body.String(), "#EXTINF:10,Miles Davis - So What")
	}, 5*time.Second, 20*time.Millisecond)

	other := models.NewStation("blues", "Blues FM", models.ManagedByDJ, 128000)
	require.NoError(t, repos.Stations.Create(ctx, other))
	foreign := models.NewSoundFragment(other.ID, "Hoochie Coochie Man", "Muddy Waters", "/music/hoochie.mp3")
	require.NoError(t, repos.SoundFragments.Create(ctx, foreign))

	w = request(router, http.MethodPost, "/api/stations/jazz/queue", map[string]any{
		"fragment_id": foreign.ID.String(),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	_, err := repos.SoundFragments.GetByID(ctx, song.ID)
	assert.False(t, db.IsNotFound(err))
}
