package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test-model",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"items\": []}"}}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
}`

func TestHTTPClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, APIKey: "sk-test", Model: "test-model"}, 5*time.Second, nil)
	resp, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "find zones", JSONMode: true})
	require.NoError(t, err)

	assert.Equal(t, `{"items": []}`, resp.Content)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "find zones", got.Messages[1].Content)
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"bad request", http.StatusBadRequest, `{"error": {"message": "model not found"}}`, nil},
		{"no choices", http.StatusOK, `{"model": "m", "choices": []}`, ErrEmptyResponse},
		{"blank content", http.StatusOK, `{"model": "m", "choices": [{"message": {"role": "assistant", "content": "  "}}]}`, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPClient(Config{BaseURL: srv.URL, Model: "m"}, 5*time.Second, nil)
			_, err := c.Complete(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.Contains(t, err.Error(), "model not found")
			}
		})
	}
}

func TestHTTPClientBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Model: "m"}, 5*time.Second, nil)
	for i := 0; i < 8; i++ {
		_, _ = c.Complete(context.Background(), Request{Prompt: "p"})
	}
	assert.Equal(t, int32(5), hits.Load())
	assert.Equal(t, "open", c.Breaker().State.String())
}

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "test-model"}, 5*time.Second, nil)
	resp, err := c.Complete(context.Background(), Request{Prompt: "p", JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"items": []}`, resp.Content)
	assert.Equal(t, 4, resp.CompletionTokens)
}

func TestOpenAIClientDoesNotRetryBadRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad prompt", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "k", Model: "m", MaxRetries: 3}, 5*time.Second, nil)
	_, err := c.Complete(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestMock(t *testing.T) {
	boom := errors.New("boom")
	m := NewMock().
		On("ZONES", Reply{Content: `{"zones": []}`}).
		Enqueue(Reply{Content: "first"}, Reply{Err: boom})

	ctx := context.Background()

	r, err := m.Complete(ctx, Request{Prompt: "identify ZONES please"})
	require.NoError(t, err)
	assert.Equal(t, `{"zones": []}`, r.Content)

	r, err = m.Complete(ctx, Request{Prompt: "other"})
	require.NoError(t, err)
	assert.Equal(t, "first", r.Content)

	_, err = m.Complete(ctx, Request{Prompt: "other"})
	assert.ErrorIs(t, err, boom)

	_, err = m.Complete(ctx, Request{Prompt: "other"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	assert.Len(t, m.Calls(), 4)
	assert.Equal(t, 1, m.CallCount("ZONES"))
}
