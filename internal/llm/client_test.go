package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, status int, content string) (*httptest.Server, *recordedRequest, *sync.Mutex) {
	t.Helper()

	var mu sync.Mutex
	recorded := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(recorded)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": content},
				},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, recorded, &mu
}

func TestClientCorrect(t *testing.T) {
	t.Parallel()

	srv, recorded, mu := newChatServer(t, http.StatusOK, "  [1] 안녕하세요.  ")
	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL + "/v1/", MaxTokens: 500})
	require.NoError(t, err)
	require.Equal(t, DefaultModel, client.Model())

	out, err := client.Correct(context.Background(), "fix spelling", "[1] 안녕 하세요", 0.1)
	require.NoError(t, err)
	require.Equal(t, "[1] 안녕하세요.", out)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, DefaultModel, recorded.Model)
	require.InDelta(t, 0.1, recorded.Temperature, 1e-6)
	require.Equal(t, 500, recorded.MaxTokens)
	require.Len(t, recorded.Messages, 2)
	require.Equal(t, "system", recorded.Messages[0].Role)
	require.Equal(t, "fix spelling", recorded.Messages[0].Content)
	require.Equal(t, "user", recorded.Messages[1].Role)
	require.Equal(t, "[1] 안녕 하세요", recorded.Messages[1].Content)
}

func TestClientCorrectEmptyContent(t *testing.T) {
	t.Parallel()

	srv, _, _ := newChatServer(t, http.StatusOK, "   ")
	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = client.Correct(context.Background(), "fix", "[1] text", 0.1)
	require.ErrorIs(t, err, ErrEmptyContent)
}

func TestClientCorrectHTTPError(t *testing.T) {
	t.Parallel()

	srv, _, _ := newChatServer(t, http.StatusTooManyRequests, "")
	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = client.Correct(context.Background(), "fix", "[1] text", 0.1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "llm correct")
}

func TestClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	require.Error(t, err)

	client, err := NewClient(Config{APIKey: "key", Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", client.Model())

	_, err = client.Correct(context.Background(), " ", "payload", 0.1)
	require.Error(t, err)
	_, err = client.Correct(context.Background(), "instruction", "", 0.1)
	require.Error(t, err)
}
