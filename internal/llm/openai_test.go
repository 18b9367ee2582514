package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, url string, retries int) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: url, Model: "gpt-4.1-mini", MaxRetries: retries}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"gpt-4.1-mini","choices":[{"message":{"content":"{\"domain\":\"sorting\"}"}}],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/", 0)
	resp, err := c.Generate(context.Background(), Request{Stage: "domain", System: "sys", User: "text", Temperature: 0.3, JSON: true})
	require.NoError(t, err)

	assert.Equal(t, `{"domain":"sorting"}`, resp.Text)
	assert.Equal(t, Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}, resp.Usage)

	assert.Equal(t, "gpt-4.1-mini", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "text", got.Messages[1].Content)
}

func TestOpenAIModelOverride(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"from manim import *"}}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 0).Generate(context.Background(), Request{User: "x", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Nil(t, got.ResponseFormat)
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL, 2).Generate(context.Background(), Request{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`bad`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Generate(context.Background(), Request{User: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIEmptyResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Generate(context.Background(), Request{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIDoesNotRetryMalformedAnswers(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>gateway</html>`},
		{"error object", `{"error":{"message":"model overloaded"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, 3).Generate(context.Background(), Request{User: "x"})
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "llama", APIKey: "k"}, nil)
	assert.ErrorContains(t, err, "unknown provider")
}

func TestUsageAdd(t *testing.T) {
	u := Usage{1, 2, 3}.Add(Usage{10, 20, 30})
	assert.Equal(t, Usage{11, 22, 33}, u)
}
