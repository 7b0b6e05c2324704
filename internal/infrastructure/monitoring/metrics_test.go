package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordCacheHit("memory")
	a.RecordCacheHit("memory")
	b.RecordCacheHit("disk")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.CacheHits.WithLabelValues("memory")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHits.WithLabelValues("memory")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCacheHit("memory")
		m.RecordCacheMiss()
		m.RecordCompute(time.Second, nil)
		m.RecordExtraction("selector", 3)
		m.RecordFallback("selector", "hybrid")
		NewTimer(m, "zones").Stop("ok")
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordCacheMiss()
	m.RecordCompute(10*time.Millisecond, errors.New("boom"))
	m.RecordExtraction("prose", 0)
	m.RecordFallback("selector", "hybrid")

	s := m.Snapshot()
	assert.EqualValues(t, 1, s.CacheMisses)
	assert.EqualValues(t, 1, s.Computes)
	assert.EqualValues(t, 1, s.ComputeErrors)
	assert.EqualValues(t, 1, s.Extractions)
	assert.EqualValues(t, 1, s.Fallbacks)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("prose", "empty")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/stats/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/stats/:id", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(w.Body.String(), "pagesense_http_requests_total"))
}
