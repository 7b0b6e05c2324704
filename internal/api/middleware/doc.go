// Package middleware holds the admin server's HTTP middleware.
//
//   - CORS: cross-origin access with configurable origins
//   - RateLimit: per-IP token bucket with idle client cleanup
//   - Gzip: response compression for the whole handler tree
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.CORSFor(cfg.Server.CORSOrigins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	handler, err := middleware.Gzip(router)
package middleware
