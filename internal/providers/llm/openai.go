package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

// OpenAIClient calls the chat completions API through the official SDK.
// The SDK's own retries are disabled; retry-go owns the retry policy.
type OpenAIClient struct {
	client   openai.Client
	model    string
	temp     float64
	attempts uint
	delay    time.Duration
	log      *zap.Logger
}

// NewOpenAIClient creates an SDK-backed completion client
func NewOpenAIClient(cfg Config, timeout time.Duration, log *zap.Logger) *OpenAIClient {
	if log == nil {
		log = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	attempts := uint(cfg.MaxRetries) + 1
	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		temp:     cfg.Temperature,
		attempts: attempts,
		delay:    time.Second,
		log:      log.Named("llm"),
	}
}

// Complete sends one chat completion request, retrying transient failures
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temp
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    msgs,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temp),
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := retry.DoWithData(
		func() (*openai.ChatCompletion, error) {
			return c.client.Chat.Completions.New(ctx, params)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("retrying completion", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return Response{}, mapOpenAIError(err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return Response{}, ErrEmptyResponse
	}

	return Response{
		Content:          completion.Choices[0].Message.Content,
		Model:            completion.Model,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

// Rate limits and server errors are worth another attempt; bad requests are not
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("completion service error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("completion service error (status %d)", apiErr.StatusCode)
	}
	return fmt.Errorf("completion request failed: %w", err)
}
