package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/metrics"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/streaming"
)

const (
	contentTypeManifest = "application/vnd.apple.mpegurl"
	contentTypeSegment  = "video/MP2T"
)

// LiveStation is a running station as the HLS endpoints see it
type LiveStation interface {
	Manifest() string
	GetSegment(seq uint64) (streaming.Segment, bool)
}

// RadioHandler serves station manifests and segments to players
type RadioHandler struct {
	lookup  func(slug string) (LiveStation, bool)
	metrics *metrics.Metrics
}

// NewRadioHandler creates a radio handler over the running stations in pool
func NewRadioHandler(pool *streaming.StationPool, m *metrics.Metrics) *RadioHandler {
	return &RadioHandler{
		lookup: func(slug string) (LiveStation, bool) {
			mgr, ok := pool.Get(slug)
			if !ok {
				return nil, false
			}
			return mgr, true
		},
		metrics: m,
	}
}

// GetManifest handles GET /:slug/radio/stream.m3u8. A running station with an
// empty window still gets a valid manifest.
func (h *RadioHandler) GetManifest(c *gin.Context) {
	slug := c.Param("slug")

	station, ok := h.lookup(slug)
	if !ok {
		c.String(http.StatusNotFound, "Station is not broadcasting")
		return
	}

	h.metrics.IncManifest(slug)
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, contentTypeManifest, []byte(station.Manifest()))
}

// GetSegment handles GET /:slug/radio/segments/:segment
func (h *RadioHandler) GetSegment(c *gin.Context) {
	slug := c.Param("slug")

	owner, seq, err := streaming.ParseSegmentName(c.Param("segment"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid segment name format")
		return
	}

	station, ok := h.lookup(slug)
	if !ok || owner != slug {
		c.String(http.StatusNotFound, "Segment not found")
		return
	}

	seg, ok := station.GetSegment(seq)
	if !ok {
		h.metrics.IncSegmentMiss(slug)
		c.String(http.StatusNotFound, "Segment not found")
		return
	}

	h.metrics.IncSegment(slug)
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, contentTypeSegment, seg.Data)
}

// SetupRadioRoutes registers the HLS player routes on the router root
func SetupRadioRoutes(router gin.IRoutes, handler *RadioHandler) {
	router.GET("/:slug/radio/stream.m3u8", handler.GetManifest)
	router.GET("/:slug/radio/segments/:segment", handler.GetSegment)
}
