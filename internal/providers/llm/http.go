package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/tracing"
)

// HTTPClient calls an OpenAI-compatible /chat/completions endpoint with
// rate limiting, transport retries, and a circuit breaker
type HTTPClient struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	model   string
	temp    float64
	log     *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// zapLeveled adapts zap to retryablehttp's leveled logger
type zapLeveled struct{ s *zap.SugaredLogger }

func (l zapLeveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l zapLeveled) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l zapLeveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l zapLeveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

// NewHTTPClient creates a completion client for an OpenAI-compatible server
func NewHTTPClient(cfg Config, timeout time.Duration, log *zap.Logger) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("llm")

	// Retries happen in the transport; resty only adds auth and decoding
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = zapLeveled{s: log.Sugar()}

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "PageSense/1.0")
	if cfg.APIKey != "" {
		restyClient.SetAuthToken(cfg.APIKey)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS)))
	}

	breaker := resilience.New("llm-http", resilience.Settings{
		Probes:   2,
		Cooldown: 30 * time.Second,
		Trip:     resilience.ConsecutiveFailures(5),
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &HTTPClient{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		model:   cfg.Model,
		temp:    cfg.Temperature,
		log:     log,
	}
}

// Complete sends one chat completion request
func (c *HTTPClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit error: %w", err)
	}

	body := chatRequest{
		Model:       c.model,
		Messages:    messages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMaxTokens
	}
	if req.Temperature == 0 {
		body.Temperature = c.temp
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	out, err := resilience.Run(ctx, c.breaker, func(ctx context.Context) (*chatResponse, error) {
		var result chatResponse
		r := c.resty.R()
		tracing.Inject(ctx, func(k, v string) { r.SetHeader(k, v) })
		resp, err := r.
			SetContext(ctx).
			SetBody(body).
			SetResult(&result).
			SetError(&result).
			Post("/chat/completions")
		if err != nil {
			return nil, fmt.Errorf("completion request failed: %w", err)
		}
		if resp.IsError() {
			msg := resp.Status()
			if result.Error != nil && result.Error.Message != "" {
				msg = result.Error.Message
			}
			return nil, fmt.Errorf("completion service error (status %d): %s", resp.StatusCode(), msg)
		}
		return &result, nil
	})
	if err != nil {
		return Response{}, err
	}

	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return Response{}, ErrEmptyResponse
	}

	c.log.Debug("completion done",
		zap.String("model", out.Model),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens))

	return Response{
		Content:          out.Choices[0].Message.Content,
		Model:            out.Model,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

// Breaker reports the circuit breaker guarding the endpoint
func (c *HTTPClient) Breaker() resilience.Snapshot {
	return c.breaker.Snapshot()
}

func messages(req Request) []chatMessage {
	var msgs []chatMessage
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	return append(msgs, chatMessage{Role: "user", Content: req.Prompt})
}
