package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig allows any origin to read stats and drop cache entries.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Accept",
			"Accept-Encoding",
			"Authorization",
			"Origin",
		},
		MaxAge: 12 * time.Hour,
	}
}

// CORSFor returns the default config restricted to the given origins.
// An empty list keeps the wildcard.
func CORSFor(origins []string) CORSConfig {
	cfg := DefaultCORSConfig()
	if len(origins) > 0 {
		cfg.AllowOrigins = slices.Clone(origins)
	}
	return cfg
}

// CORS creates a CORS middleware with the provided configuration.
// Credentials are never allowed together with a wildcard origin.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	wildcard := slices.Contains(cfg.AllowOrigins, "*")
	c := cors.Config{
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		AllowCredentials: cfg.AllowCredentials && !wildcard,
		MaxAge:           cfg.MaxAge,
	}
	if wildcard {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(c)
}
