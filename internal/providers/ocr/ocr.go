// Package ocr detects text in page screenshots.
//
// HTTPDetector posts the screenshot to an OCR service. Static returns fixed
// blocks and stands in for the service in tests and offline runs.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// ErrNotImage is returned when the screenshot file is not an image
var ErrNotImage = errors.New("ocr: file is not an image")

// Detector finds text blocks in a screenshot
type Detector interface {
	DetectText(ctx context.Context, screenshotPath string) ([]types.OCRTextBlock, error)
}

// CheckImage sniffs the file and rejects anything that is not an image
func CheckImage(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("mime detection failed: %w", err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return mtype.String(), fmt.Errorf("%w: %s", ErrNotImage, mtype.String())
	}
	return mtype.String(), nil
}

// block is the service wire format. Either bounds or a [x0,y0,x1,y1] box.
type block struct {
	Text       string        `json:"text"`
	Bounds     *types.Bounds `json:"bounds,omitempty"`
	Box        []float64     `json:"box,omitempty"`
	Confidence float64       `json:"confidence"`
}

type detectResponse struct {
	Blocks []block `json:"blocks"`
	Error  string  `json:"error,omitempty"`
}

func (b block) toTextBlock() (types.OCRTextBlock, bool) {
	text := strings.TrimSpace(b.Text)
	if text == "" {
		return types.OCRTextBlock{}, false
	}
	out := types.OCRTextBlock{Text: text, Confidence: b.Confidence}
	switch {
	case b.Bounds != nil:
		out.Bounds = *b.Bounds
	case len(b.Box) == 4:
		out.Bounds = types.Bounds{
			Left:   b.Box[0],
			Top:    b.Box[1],
			Width:  b.Box[2] - b.Box[0],
			Height: b.Box[3] - b.Box[1],
		}
	}
	if out.Confidence <= 0 || out.Confidence > 1 {
		out.Confidence = 1
	}
	return out, true
}

// HTTPDetector calls an OCR service that accepts a multipart image upload
type HTTPDetector struct {
	resty    *resty.Client
	breaker  *resilience.Breaker
	endpoint string
	log      *zap.Logger
}

// NewHTTPDetector creates a detector posting to endpoint
func NewHTTPDetector(endpoint string, timeout time.Duration, log *zap.Logger) *HTTPDetector {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ocr")

	breaker := resilience.New("ocr-http", resilience.Settings{
		Cooldown: 30 * time.Second,
		Trip:     resilience.ConsecutiveFailures(3),
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &HTTPDetector{
		resty:    resty.New().SetTimeout(timeout).SetHeader("User-Agent", "PageSense/1.0"),
		breaker:  breaker,
		endpoint: endpoint,
		log:      log,
	}
}

// DetectText uploads the screenshot and returns the detected blocks
func (d *HTTPDetector) DetectText(ctx context.Context, screenshotPath string) ([]types.OCRTextBlock, error) {
	if _, err := CheckImage(screenshotPath); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := resilience.Run(ctx, d.breaker, func(ctx context.Context) (*detectResponse, error) {
		var result detectResponse
		r := d.resty.R()
		tracing.Inject(ctx, func(k, v string) { r.SetHeader(k, v) })
		resp, err := r.
			SetContext(ctx).
			SetFile("image", screenshotPath).
			SetResult(&result).
			SetError(&result).
			Post(d.endpoint)
		if err != nil {
			return nil, fmt.Errorf("ocr request failed: %w", err)
		}
		if resp.IsError() {
			msg := resp.Status()
			if result.Error != "" {
				msg = result.Error
			}
			return nil, fmt.Errorf("ocr service error (status %d): %s", resp.StatusCode(), msg)
		}
		return &result, nil
	})
	if err != nil {
		return nil, err
	}

	blocks := make([]types.OCRTextBlock, 0, len(out.Blocks))
	for _, b := range out.Blocks {
		if tb, ok := b.toTextBlock(); ok {
			blocks = append(blocks, tb)
		}
	}

	d.log.Debug("ocr done",
		zap.String("path", screenshotPath),
		zap.Int("blocks", len(blocks)),
		zap.Duration("duration", time.Since(start)))
	return blocks, nil
}

// Static returns the same blocks for every screenshot
type Static struct {
	Blocks []types.OCRTextBlock
	Err    error
}

// DetectText returns a copy of the fixed blocks
func (s *Static) DetectText(ctx context.Context, screenshotPath string) ([]types.OCRTextBlock, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]types.OCRTextBlock(nil), s.Blocks...), nil
}

var (
	_ Detector = (*HTTPDetector)(nil)
	_ Detector = (*Static)(nil)
)

// Breaker reports the circuit breaker guarding the endpoint
func (d *HTTPDetector) Breaker() resilience.Snapshot {
	return d.breaker.Snapshot()
}
