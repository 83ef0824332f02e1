package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/run-coach/internal/config"
	"alcyxob/run-coach/internal/testhelpers"
)

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func newTestGenerator(t *testing.T, srv *httptest.Server, timeout time.Duration) *OpenAI {
	t.Helper()
	cfg := config.OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/", Model: "gpt-4o", Timeout: timeout}
	return NewOpenAI(cfg, testhelpers.NewLogger(t), option.WithMaxRetries(0))
}

func TestGenerateReturnsContent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("```json\n{\"phases\":[]}\n```"))
	}))
	defer srv.Close()

	raw, err := newTestGenerator(t, srv, time.Second).Generate(context.Background(), "# Role\nplan please")
	require.NoError(t, err)
	assert.JSONEq(t, `{"phases":[]}`, string(raw))

	assert.Equal(t, "gpt-4o", got["model"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	assert.Equal(t, "json_object", got["response_format"].(map[string]any)["type"])
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	_, err := newTestGenerator(t, srv, 50*time.Millisecond).Generate(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := newTestGenerator(t, srv, time.Second).Generate(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestGenerateEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("  "))
	}))
	defer srv.Close()

	_, err := newTestGenerator(t, srv, time.Second).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, ExtractJSON("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, ExtractJSON("  {\"a\":1}\n"))
	assert.Equal(t, "Sure! Here it is", ExtractJSON("Sure! Here it is"))
}
