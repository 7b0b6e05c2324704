package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/core"
	"github.com/GriffinCanCode/PageSense/backend/internal/domain/extraction"
	"github.com/GriffinCanCode/PageSense/backend/internal/domain/understanding"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/browser"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/ocr"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

type page interface {
	browser.Page
	Close() error
}

type output struct {
	Understanding *types.PageUnderstanding `json:"understanding"`
	Items         []types.Item             `json:"items"`
	Report        *extraction.Report       `json:"validation,omitempty"`
}

func main() {
	rawURL := flag.String("url", "", "Page to understand (required)")
	goal := flag.String("goal", "products", "Extraction goal: products, article, contact_info, topics, list_items, news")
	zone := flag.String("zone", "", "Zone to extract (default: primary zone)")
	configPath := flag.String("config", "", "YAML or TOML config file")
	live := flag.Bool("browser", false, "Render the page in Chrome instead of fetching HTML")
	refresh := flag.Bool("refresh", false, "Ignore any cached understanding")
	validate := flag.Bool("validate", false, "Cross-validate items against OCR of a screenshot")
	timeout := flag.Duration("timeout", 3*time.Minute, "Overall deadline")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	if *rawURL == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	logger := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, logger, *rawURL, types.ParseGoal(*goal), *zone, *live, *refresh, *validate); err != nil {
		logger.Fatal("Probe failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, rawURL string, goal types.Goal, zone string, live, refresh, validate bool) error {
	tracer := tracing.New("pagesense-probe", logger.Logger)
	defer tracer.Close()

	c, err := core.New(core.Options{Config: cfg, Logger: logger, Tracer: tracer})
	if err != nil {
		return err
	}

	p, cleanup, err := openPage(ctx, cfg, logger, rawURL, live)
	if err != nil {
		return err
	}
	defer cleanup()
	defer p.Close()

	var u *types.PageUnderstanding
	if refresh {
		u, err = c.Refresh(ctx, p, goal)
	} else {
		u, err = c.Understand(ctx, p, goal)
	}
	switch {
	case errors.Is(err, understanding.ErrInterrupted) && u != nil:
		logger.Warn("understanding incomplete, not cached", zap.Error(err))
	case err != nil:
		return fmt.Errorf("understand %s: %w", rawURL, err)
	}

	out := output{Understanding: u}
	if validate && cfg.OCR.Endpoint != "" {
		blocks, err := screenshotText(ctx, cfg, logger, p)
		if err != nil {
			logger.Warn("OCR unavailable, skipping validation", zap.Error(err))
		}
		out.Report, err = c.Engine.ExtractAndValidate(ctx, p, u, zone, extraction.Options{Goal: goal}, blocks)
		if err != nil {
			return fmt.Errorf("extract %s: %w", rawURL, err)
		}
		out.Items = out.Report.Items
	} else {
		if out.Items, err = c.Extract(ctx, p, u, zone, goal); err != nil {
			return fmt.Errorf("extract %s: %w", rawURL, err)
		}
	}

	data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// openPage fetches static HTML or opens a live Chrome tab
func openPage(ctx context.Context, cfg *config.Config, logger *logging.Logger, rawURL string, live bool) (page, func(), error) {
	if !live {
		f := browser.NewFetcher(cfg.Browser.Timeout.Std(), logger.Component("fetch"))
		p, err := f.Fetch(ctx, rawURL)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	}

	chrome, err := browser.Connect(ctx, browser.ChromeConfig{
		RemoteURL:  cfg.Browser.RemoteURL,
		Headless:   cfg.Browser.Headless,
		NavTimeout: cfg.Browser.Timeout.Std(),
		Logger:     logger.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	p, err := chrome.Open(ctx, rawURL)
	if err != nil {
		_ = chrome.Close()
		return nil, nil, err
	}
	return p, func() { _ = chrome.Close() }, nil
}

func screenshotText(ctx context.Context, cfg *config.Config, logger *logging.Logger, p browser.Page) ([]types.OCRTextBlock, error) {
	path, err := p.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	d := ocr.NewHTTPDetector(cfg.OCR.Endpoint, cfg.OCR.Timeout.Std(), logger.Component("ocr"))
	return d.DetectText(ctx, path)
}
