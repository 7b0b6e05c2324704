/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for PageSense,
tracking the understanding cache, pipeline phases, extraction methods,
cross-validation agreements, and the admin HTTP surface.

Every Metrics value owns its registry, so tests can create as many as they
like. A nil *Metrics records nothing.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.RecordCacheHit("memory")

	// Time pipeline phases
	timer := monitoring.NewTimer(metrics, "zones")
	// ... perform phase ...
	timer.Stop("ok")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
