// Package llm provides completion service clients.
//
// Everything above this package talks to a Completer. HTTPClient speaks the
// OpenAI-compatible chat completions protocol over resty and suits local
// model servers. OpenAIClient uses the official SDK. Mock scripts responses
// for tests.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the service answers with no content
var ErrEmptyResponse = errors.New("llm: empty response")

// Request is one completion call
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	JSONMode    bool // ask for a JSON object response
}

// Response is the text a completion produced
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Completer turns a prompt into text
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config configures the network clients
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	RPS         float64 // 0 means unlimited
}

const defaultMaxTokens = 4096
