package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/core"
	"github.com/GriffinCanCode/PageSense/backend/internal/domain/fingerprint"
)

// Version is reported by the health endpoint
const Version = "0.3.0"

// Handlers serves the admin surface over a Core
type Handlers struct {
	core *core.Core
	log  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(c *core.Core, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{core: c, log: log.Named("admin")}
}

// Register mounts every admin route
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/metrics", gin.WrapH(h.core.Metrics.Handler()))

	r.DELETE("/cache/domains", h.InvalidatePattern)
	r.DELETE("/cache/domains/:domain", h.InvalidateDomain)
	r.DELETE("/cache/:fingerprint", h.InvalidateEntry)
}

// Health handles liveness checks
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pagesense",
		"version": Version,
	})
}

// Stats reports cache occupancy and counters
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.core.Stats())
}

// InvalidateEntry drops one fingerprint
func (h *Handlers) InvalidateEntry(c *gin.Context) {
	fp := c.Param("fingerprint")
	if !strings.Contains(fp, ":") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fingerprint must look like domain:hash"})
		return
	}

	if !h.core.Cache.Invalidate(c.Request.Context(), fp) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached entry", "fingerprint": fp})
		return
	}
	h.log.Info("entry invalidated", zap.String("fingerprint", fp))
	c.JSON(http.StatusOK, gin.H{"fingerprint": fp, "removed": true})
}

// InvalidateDomain drops every entry of one domain
func (h *Handlers) InvalidateDomain(c *gin.Context) {
	domain := fingerprint.Domain("//" + c.Param("domain"))
	n := h.core.Cache.InvalidateDomain(c.Request.Context(), domain)
	h.log.Info("domain invalidated", zap.String("domain", domain), zap.Int("entries", n))
	c.JSON(http.StatusOK, gin.H{"domain": domain, "removed": n})
}

// InvalidatePattern drops every domain matching ?pattern=
func (h *Handlers) InvalidatePattern(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern query parameter is required"})
		return
	}

	domains, err := h.core.Cache.InvalidatePattern(c.Request.Context(), pattern)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if domains == nil {
		domains = []string{}
	}
	h.log.Info("pattern invalidated", zap.String("pattern", pattern), zap.Strings("domains", domains))
	c.JSON(http.StatusOK, gin.H{"pattern": pattern, "domains": domains})
}
