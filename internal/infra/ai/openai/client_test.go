package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/advisor-guard/internal/domain/ai"
)

func chatServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/chat/completions")
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"error": map[string]any{"message": "rate limited", "type": "requests", "code": "rate_limit_exceeded"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini-2024-07-18",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		})
	}))
}

func TestComplete_SendsDecodingParams(t *testing.T) {
	var body map[string]any
	ts := chatServer(t, http.StatusOK, `{"sales":11183}`, &body)
	defer ts.Close()

	seed := 7
	c := NewClientWithBaseURL("k", "gpt-4o-mini", ts.URL+"/v1")
	out, err := c.Complete(context.Background(), ai.Request{
		System: "sys",
		User:   "question",
		Params: ai.Params{Temperature: 0, TopP: 0.9, MaxTokens: 300, Seed: &seed, JSONMode: true},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"sales":11183}`, out.Text)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", out.Model)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, float64(300), body["max_tokens"])
	assert.Equal(t, float64(7), body["seed"])
	assert.Greater(t, body["temperature"], 0.0)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
}

func TestComplete_ReasoningModelUsesCompletionTokens(t *testing.T) {
	var body map[string]any
	ts := chatServer(t, http.StatusOK, "ok", &body)
	defer ts.Close()

	_, err := NewClientWithBaseURL("k", "o3-mini", ts.URL+"/v1").Complete(context.Background(), ai.Request{User: "q"})
	require.NoError(t, err)
	assert.Equal(t, float64(defaultMaxTokens), body["max_completion_tokens"])
	assert.NotContains(t, body, "max_tokens")
	assert.NotContains(t, body, "temperature")
}

func TestComplete_QuotaExceeded(t *testing.T) {
	ts := chatServer(t, http.StatusTooManyRequests, "", nil)
	defer ts.Close()

	_, err := NewClientWithBaseURL("k", "", ts.URL+"/v1").Complete(context.Background(), ai.Request{User: "q"})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestComplete_Empty(t *testing.T) {
	ts := chatServer(t, http.StatusOK, "  ", nil)
	defer ts.Close()

	_, err := NewClientWithBaseURL("k", "", ts.URL+"/v1").Complete(context.Background(), ai.Request{User: "q"})
	assert.ErrorIs(t, err, ai.ErrEmptyCompletion)
}
