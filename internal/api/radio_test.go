package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/metrics"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/streaming"
)

// fakeLive serves a fixed manifest and segment set
type fakeLive struct {
	manifest string
	segments map[uint64]streaming.Segment
}

func (f *fakeLive) Manifest() string { return f.manifest }

func (f *fakeLive) GetSegment(seq uint64) (streaming.Segment, bool) {
	s, ok := f.segments[seq]
	return s, ok
}

const liveManifest = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-ALLOW-CACHE:NO\n#EXT-X-TARGETDURATION:10\n#EXT-X-MEDIA-SEQUENCE:41\n" +
	"#EXTINF:10.000,Miles Davis - So What\nsegments/jazz_41.ts\n" +
	"#EXTINF:10.000,Miles Davis - So What\nsegments/jazz_42.ts\n"

func setupRadioTestRouter(stations map[string]LiveStation, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := &RadioHandler{
		lookup: func(slug string) (LiveStation, bool) {
			s, ok := stations[slug]
			return s, ok
		},
		metrics: m,
	}
	SetupRadioRoutes(router, handler)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGetManifest(t *testing.T) {
	m := metrics.New()
	router := setupRadioTestRouter(map[string]LiveStation{
		"jazz": &fakeLive{manifest: liveManifest},
	}, m)

	w := get(router, "/jazz/radio/stream.m3u8")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeManifest, w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(w.Body.String()), false)
	require.NoError(t, err)
	require.Equal(t, m3u8.MEDIA, listType)
	media := playlist.(*m3u8.MediaPlaylist)
	assert.Equal(t, uint64(41), media.SeqNo)
	assert.Contains(t, scrape(t, m), `broadcaster_manifests_served_total{station="jazz"} 1`)
}

func TestGetManifest_NotBroadcasting(t *testing.T) {
	router := setupRadioTestRouter(map[string]LiveStation{}, nil)

	w := get(router, "/jazz/radio/stream.m3u8")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSegment(t *testing.T) {
	live := &fakeLive{segments: map[uint64]streaming.Segment{
		42: {Sequence: 42, Data: []byte("mpegts-bytes")},
	}}
	router := setupRadioTestRouter(map[string]LiveStation{"jazz": live}, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"hit", "/jazz/radio/segments/jazz_42.ts", http.StatusOK, "mpegts-bytes"},
		{"evicted", "/jazz/radio/segments/jazz_7.ts", http.StatusNotFound, "Segment not found"},
		{"other station name", "/jazz/radio/segments/rock_42.ts", http.StatusNotFound, "Segment not found"},
		{"station not running", "/rock/radio/segments/rock_42.ts", http.StatusNotFound, "Segment not found"},
		{"bad name", "/jazz/radio/segments/segment.ts", http.StatusBadRequest, "Invalid segment name format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.path)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, contentTypeSegment, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestGetSegment_CountsMisses(t *testing.T) {
	m := metrics.New()
	live := &fakeLive{segments: map[uint64]streaming.Segment{1: {Data: []byte("x")}}}
	router := setupRadioTestRouter(map[string]LiveStation{"jazz": live}, m)

	get(router, "/jazz/radio/segments/jazz_1.ts")
	get(router, "/jazz/radio/segments/jazz_2.ts")
	get(router, "/jazz/radio/segments/jazz_3.ts")

	out := scrape(t, m)
	assert.Contains(t, out, `broadcaster_segments_served_total{station="jazz"} 1`)
	assert.Contains(t, out, `broadcaster_segment_misses_total{station="jazz"} 2`)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}
