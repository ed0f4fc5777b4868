package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/metrics"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/api/stations", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/jazz/radio/stream.m3u8", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return router
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	saved := logger.Log
	logger.Log = zerolog.New(&buf).Level(zerolog.InfoLevel)
	t.Cleanup(func() { logger.Log = saved })

	router := newRouter(RequestLogger())
	for _, path := range []string{"/api/stations", "/jazz/radio/stream.m3u8", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2, "player polling is below info level")
	assert.Contains(t, lines[0], `"path":"/api/stations"`)
	assert.Contains(t, lines[0], `"level":"info"`)
	assert.Contains(t, lines[1], `"status":500`)
	assert.Contains(t, lines[1], `"level":"warn"`)
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	router := newRouter(Metrics(m))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stations", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	w := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := w.Body.String()
	assert.Contains(t, out, `broadcaster_http_requests_total{code="200"} 1`)
	assert.Contains(t, out, `broadcaster_http_requests_total{code="500"} 1`)
	assert.Contains(t, out, `broadcaster_http_requests_total{code="404"} 1`)
}
