// Package logging builds the zap root logger from the logging config.
//
//	logger := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
//	defer logger.Sync()
//	cacheLog := logger.Component("cache")
package logging
