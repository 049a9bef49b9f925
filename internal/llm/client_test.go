package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"{\"totalScore\":88}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(&Config{Provider: ProviderOpenAI, Model: "m", BaseURL: srv.URL, Timeout: 5 * time.Second}, "test-key")
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), Request{
		System:      "You are an ATS.",
		User:        "Score this.",
		Temperature: 0.3,
		MaxTokens:   500,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"totalScore":88}`, reply)

	assert.Equal(t, "m", got["model"])
	assert.EqualValues(t, 500, got["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(&Config{BaseURL: srv.URL}, "test-key")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{User: "x"})
	assert.Error(t, err)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(&Config{BaseURL: srv.URL}, "test-key")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{User: "x"})
	assert.Error(t, err)
}
