// Package config provides 12-factor configuration management for PageSense.
//
// Configuration starts from Default(), is optionally overlaid by a YAML or
// TOML file, and is finally overridden by environment variables. CLI flags
// in cmd/server override the result for development flexibility.
//
// Configuration Sections:
//   - Server: admin HTTP server settings (port, host, CORS)
//   - Cache: memory capacity, disk directory, max age, per-domain cap
//   - LLM: completion service provider, endpoint, model, limits
//   - OCR: OCR service endpoint
//   - Browser: remote Chrome for live pages
//   - Extraction: fallback scaling and prose limits
//   - CrossValidation: OCR/DOM agreement thresholds
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Cache dir %s, capacity %d\n", cfg.Cache.Dir, cfg.Cache.MemoryCapacity)
//
// Environment Variables:
//   - PAGESENSE_SERVER_PORT, PAGESENSE_SERVER_HOST
//   - PAGESENSE_CACHE_DIR, PAGESENSE_CACHE_MAX_AGE, PAGESENSE_CACHE_DOMAIN_CAP
//   - PAGESENSE_LLM_PROVIDER, PAGESENSE_LLM_BASE_URL, PAGESENSE_LLM_API_KEY
//   - PAGESENSE_LOGGING_LEVEL, PAGESENSE_LOGGING_DEV
package config
