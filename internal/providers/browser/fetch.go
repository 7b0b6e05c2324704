package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/PageSense/backend/internal/providers/scraper"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; PageSense/1.0)"

// Fetcher loads pages over plain HTTP into StaticPages
type Fetcher struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	log     *zap.Logger
	opts    []StaticOption
}

// NewFetcher creates a fetcher with its own circuit breaker
func NewFetcher(timeout time.Duration, log *zap.Logger, opts ...StaticOption) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("fetcher")

	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", defaultUserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	breaker := resilience.New("page-fetch", resilience.Settings{
		Cooldown: 30 * time.Second,
		Trip:     resilience.ConsecutiveFailures(5),
	})

	return &Fetcher{resty: client, breaker: breaker, log: log, opts: opts}
}

// Fetch retrieves rawURL and parses it
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*StaticPage, error) {
	resp, err := resilience.Run(ctx, f.breaker, func(ctx context.Context) (*resty.Response, error) {
		resp, err := f.resty.R().SetContext(ctx).Get(rawURL)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s (url: %s)", resp.StatusCode(), resp.Status(), rawURL)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body from %s", rawURL)
	}
	if len(body) > scraper.MaxHTMLSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", rawURL, scraper.MaxHTMLSize)
	}

	f.log.Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode()),
		zap.Int("bytes", len(body)))

	final := rawURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL.String()
	}
	return ParseStaticPage(final, body, resp.Header().Get("Content-Type"), f.opts...)
}
