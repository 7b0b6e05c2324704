// Package server provides the PageSense admin HTTP server.
//
// Routes:
//   - GET /healthz: liveness
//   - GET /stats: cache occupancy and counters
//   - GET /metrics: Prometheus exposition
//   - DELETE /cache/:fingerprint: drop one entry
//   - DELETE /cache/domains/:domain: drop a domain
//   - DELETE /cache/domains?pattern=*.example.com: drop matching domains
//
// Middleware: recovery, tracing, request metrics, CORS, optional per-IP
// rate limiting. The whole tree is wrapped in gzip compression.
//
// Example Usage:
//
//	c, _ := core.New(core.Options{Config: cfg, Logger: logger})
//	srv, err := server.NewServer(cfg, c, logger)
//	go srv.Run()
//	defer srv.Shutdown(context.Background())
package server
