package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/core"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/PageSense/backend/internal/server"
)

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	port := flag.String("port", "", "Admin server port (overrides config)")
	cacheDir := flag.String("cache-dir", "", "Understanding cache directory (overrides config)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *cacheDir != "" {
		cfg.Cache.Dir = *cacheDir
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)

	tracer := tracing.New("pagesense", logger.Logger)
	defer tracer.Close()

	c, err := core.New(core.Options{Config: cfg, Logger: logger, Tracer: tracer})
	if err != nil {
		logger.Fatal("Failed to build core", zap.Error(err))
	}

	srv, err := server.NewServer(cfg, c, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		logger.Fatal("Server error", zap.Error(err))
	}
}
