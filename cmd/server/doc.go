// Package main runs the PageSense admin server.
//
// The server owns the page understanding cache and exposes health, stats,
// Prometheus metrics and cache invalidation over HTTP.
//
// Configuration:
//   - Defaults, then an optional YAML/TOML file, then PAGESENSE_* env vars
//   - CLI flags override all of the above
//
// Usage:
//
//	./server -config pagesense.yaml
//	./server -port 9000 -cache-dir /var/cache/pagesense -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
