package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string         `json:"status"`
	Database string         `json:"database"`
	Stations int            `json:"stations"`
	Time     string         `json:"time"`
	Details  map[string]any `json:"details,omitempty"`
}

// healthChecker reports catalog connectivity
type healthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       healthChecker
	stations func() int
}

// NewHealthHandler creates a new health check handler. stations reports how
// many stations are running and may be nil.
func NewHealthHandler(database healthChecker, stations func() int) *HealthHandler {
	return &HealthHandler{db: database, stations: stations}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]any),
	}
	if h.stations != nil {
		response.Stations = h.stations()
	}

	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(group *gin.RouterGroup, database healthChecker, stations func() int) {
	handler := NewHealthHandler(database, stations)
	group.GET("/health", handler.Check)
}
