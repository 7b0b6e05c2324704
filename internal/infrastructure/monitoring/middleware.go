package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Handler exposes the metrics registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Timer measures operation duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	phase   string
}

// NewTimer creates a new timer for a pipeline phase
func NewTimer(metrics *Metrics, phase string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		phase:   phase,
	}
}

// Stop stops the timer and records the duration with an outcome
func (t *Timer) Stop(outcome string) time.Duration {
	d := time.Since(t.start)
	t.metrics.RecordPhase(t.phase, outcome, d)
	return d
}
