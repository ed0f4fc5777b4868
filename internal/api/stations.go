package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/catalog"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/streaming"
)

// stationPool defines the interface required by StationHandler
type stationPool interface {
	Start(ctx context.Context, slug string) (*streaming.StreamManager, error)
	Stop(ctx context.Context, slug string) error
	Get(slug string) (*streaming.StreamManager, bool)
	List() []*streaming.StreamManager
	Stats(slug string) (streaming.StationStats, error)
	AddFragmentToSlice(ctx context.Context, slug string, req streaming.SliceRequest) error
}

// fragmentFinder loads catalog entries for the queue endpoint
type fragmentFinder interface {
	GetFragment(ctx context.Context, id uuid.UUID) (*models.SoundFragment, error)
}

// StationSummary is one entry of the running stations list
type StationSummary struct {
	Slug           string               `json:"slug"`
	Name           string               `json:"name"`
	Status         models.StationStatus `json:"status"`
	ManagedBy      models.ManagedBy     `json:"managed_by"`
	WindowSegments int                  `json:"window_segments"`
	StreamURL      string               `json:"stream_url"`
}

// StationListResponse wraps the running stations
type StationListResponse struct {
	Stations []StationSummary `json:"stations"`
	Total    int              `json:"total"`
}

// QueueRequest asks for a catalog entry to be sliced onto a station
type QueueRequest struct {
	FragmentID  string `json:"fragment_id" binding:"required,uuid"`
	Priority    string `json:"priority"`
	MergingType string `json:"merging_type"`
	QueueNumber int64  `json:"queue_number" binding:"gte=0"`
}

// QueueResponse confirms an accepted fragment
type QueueResponse struct {
	Station    string               `json:"station"`
	FragmentID string               `json:"fragment_id"`
	Priority   string               `json:"priority"`
	Status     models.StationStatus `json:"status"`
}

// lifecycleTimeout bounds loading a station from the catalog
const lifecycleTimeout = 10 * time.Second

// StationHandler handles station control requests
type StationHandler struct {
	pool         stationPool
	fragments    fragmentFinder
	sliceTimeout time.Duration
}

// NewStationHandler creates a new station handler. sliceTimeout bounds a
// queue request, which slices synchronously.
func NewStationHandler(pool stationPool, fragments fragmentFinder, sliceTimeout time.Duration) *StationHandler {
	if sliceTimeout <= 0 {
		sliceTimeout = 5 * time.Minute
	}
	return &StationHandler{pool: pool, fragments: fragments, sliceTimeout: sliceTimeout}
}

// List handles GET /api/stations
func (h *StationHandler) List(c *gin.Context) {
	managers := h.pool.List()
	resp := StationListResponse{Stations: make([]StationSummary, 0, len(managers))}
	for _, m := range managers {
		resp.Stations = append(resp.Stations, summarize(m))
	}
	resp.Total = len(resp.Stations)
	c.JSON(http.StatusOK, resp)
}

// Start handles POST /api/stations/:slug/start
func (h *StationHandler) Start(c *gin.Context) {
	slug := c.Param("slug")

	ctx, cancel := context.WithTimeout(c.Request.Context(), lifecycleTimeout)
	defer cancel()

	m, err := h.pool.Start(ctx, slug)
	if err != nil {
		if errors.Is(err, streaming.ErrStationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "station_not_found",
				Message: "Station not found",
			})
			return
		}
		logger.Log.Error().Err(err).Str("station", slug).Msg("Failed to start station")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "start_failed",
			Message: "Failed to start station",
		})
		return
	}

	c.JSON(http.StatusOK, summarize(m))
}

// Stop handles POST /api/stations/:slug/stop
func (h *StationHandler) Stop(c *gin.Context) {
	slug := c.Param("slug")

	if err := h.pool.Stop(c.Request.Context(), slug); err != nil {
		if errors.Is(err, streaming.ErrStationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "station_not_running",
				Message: "Station is not running",
			})
			return
		}
		logger.Log.Error().Err(err).Str("station", slug).Msg("Failed to stop station")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "stop_failed",
			Message: "Failed to stop station",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"slug": slug, "status": models.StatusOffline})
}

// Stats handles GET /api/stations/:slug/stats
func (h *StationHandler) Stats(c *gin.Context) {
	stats, err := h.pool.Stats(c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "station_not_running",
			Message: "Station is not running",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Enqueue handles POST /api/stations/:slug/queue
func (h *StationHandler) Enqueue(c *gin.Context) {
	slug := c.Param("slug")

	var req QueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	priority, err := streaming.ParsePriority(req.Priority)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_priority",
			Message: err.Error(),
		})
		return
	}

	m, ok := h.pool.Get(slug)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "station_not_running",
			Message: "Station is not running",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.sliceTimeout)
	defer cancel()

	fragment, err := h.fragments.GetFragment(ctx, uuid.MustParse(req.FragmentID))
	if err != nil {
		if errors.Is(err, catalog.ErrFragmentNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "fragment_not_found",
				Message: "Sound fragment not found",
			})
			return
		}
		logger.Log.Error().Err(err).Str("fragment_id", req.FragmentID).Msg("Failed to load fragment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "catalog_error",
			Message: "Failed to load sound fragment",
		})
		return
	}
	if fragment.StationID != m.Station().ID {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "foreign_fragment",
			Message: "Sound fragment belongs to another station",
		})
		return
	}

	mergingType := models.MergingType(req.MergingType)
	if mergingType == "" {
		mergingType = models.MergingNotMixed
	}

	err = h.pool.AddFragmentToSlice(ctx, slug, streaming.SliceRequest{
		Fragment:    fragment,
		Priority:    priority,
		MergingType: mergingType,
		QueueNumber: req.QueueNumber,
	})
	if err != nil {
		h.writeSliceError(c, slug, err)
		return
	}

	c.JSON(http.StatusCreated, QueueResponse{
		Station:    slug,
		FragmentID: fragment.ID.String(),
		Priority:   priority.String(),
		Status:     m.Status(),
	})
}

func (h *StationHandler) writeSliceError(c *gin.Context, slug string, err error) {
	switch {
	case errors.Is(err, streaming.ErrRegularQueueFull):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "queue_full",
			Message: "Regular queue is full, try later",
		})
	case errors.Is(err, streaming.ErrNoSegments):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "no_segments",
			Message: "Slicing produced no segments",
		})
	case errors.Is(err, streaming.ErrStationStopped), errors.Is(err, streaming.ErrStationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "station_not_running",
			Message: "Station is not running",
		})
	default:
		logger.Log.Error().Err(err).Str("station", slug).Msg("Failed to slice fragment")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "slice_failed",
			Message: "Failed to slice sound fragment",
		})
	}
}

func summarize(m *streaming.StreamManager) StationSummary {
	st := m.Station()
	return StationSummary{
		Slug:           st.Slug,
		Name:           st.Name,
		Status:         m.Status(),
		ManagedBy:      st.ManagedBy,
		WindowSegments: m.SegmentCount(),
		StreamURL:      "/" + st.Slug + "/radio/stream.m3u8",
	}
}

// SetupStationRoutes registers station control routes
func SetupStationRoutes(group *gin.RouterGroup, pool stationPool, fragments fragmentFinder, sliceTimeout time.Duration) {
	handler := NewStationHandler(pool, fragments, sliceTimeout)

	stations := group.Group("/stations")
	stations.GET("", handler.List)
	stations.POST("/:slug/start", handler.Start)
	stations.POST("/:slug/stop", handler.Stop)
	stations.GET("/:slug/stats", handler.Stats)
	stations.POST("/:slug/queue", handler.Enqueue)
}
