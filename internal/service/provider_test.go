package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"uni-counselor/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	name  string
	resp  *ProviderResponse
	err   error
	calls int
}

func (s *stubProvider) Provider() string { return s.name }
func (s *stubProvider) Model() string    { return "stub-model" }

func (s *stubProvider) Complete(_ context.Context, _ []ChatMessage, _ float64, _ int) (*ProviderResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestGatewayNoProviderConfigured(t *testing.T) {
	gw := NewGateway(nil, nil, zap.NewNop())

	_, err := gw.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, 0.7, 100)
	assert.ErrorIs(t, err, ErrNoProviderConfigured)
}

func TestGatewayPrimarySuccessSkipsFallback(t *testing.T) {
	primary := &stubProvider{name: "openrouter", resp: &ProviderResponse{Content: "hello", Provider: "openrouter"}}
	fallback := &stubProvider{name: "openai", resp: &ProviderResponse{Content: "fallback", Provider: "openai"}}
	gw := NewGateway(primary, fallback, zap.NewNop())

	resp, err := gw.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, 0.7, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "openrouter", resp.Provider)
	assert.Equal(t, 0, fallback.calls)
}

func TestGatewayFailover(t *testing.T) {
	primary := &stubProvider{name: "openrouter", err: errors.New("rate limited")}
	fallback := &stubProvider{name: "openai", resp: &ProviderResponse{Content: "fallback answer", Provider: "openai"}}
	gw := NewGateway(primary, fallback, zap.NewNop())

	resp, err := gw.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, 0.7, 100)
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestGatewayBothFail(t *testing.T) {
	primary := &stubProvider{name: "openrouter", err: errors.New("timeout")}
	fallback := &stubProvider{name: "openai", err: errors.New("server error")}
	gw := NewGateway(primary, fallback, zap.NewNop())

	_, err := gw.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, 0.7, 100)
	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.Contains(t, err.Error(), "server error")
}

func TestGatewayFallbackOnly(t *testing.T) {
	fallback := &stubProvider{name: "gigachat", resp: &ProviderResponse{Content: "ok", Provider: "gigachat"}}
	gw := NewGateway(nil, fallback, zap.NewNop())

	resp, err := gw.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, 0.7, 100)
	require.NoError(t, err)
	assert.Equal(t, "gigachat", resp.Provider)
}

func TestOpenAIClientWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Model       string        `json:"model"`
			Messages    []ChatMessage `json:"messages"`
			Temperature float64       `json:"temperature"`
			MaxTokens   int           `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "the answer"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("openrouter", config.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	}, 5*time.Second)

	resp, err := client.Complete(context.Background(), []ChatMessage{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}, 0.7, 100)
	require.NoError(t, err)
	assert.Equal(t, "the answer", resp.Content)
	assert.Equal(t, "openrouter", resp.Provider)
	assert.Equal(t, 17, resp.Usage.TotalTokens)
}

func TestOpenAIClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("openrouter", config.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	}, 5*time.Second)

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, 0.7, 100)
	assert.Error(t, err)
}

func TestOpenAIEmbedderWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer embed-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"munich programmes"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3]}]}`))
	}))
	defer srv.Close()

	embedder := NewOpenAIEmbedder(&config.EmbeddingConfig{
		APIKey:  "embed-key",
		BaseURL: srv.URL,
		Model:   "text-embedding-3-small",
	}, 5*time.Second)

	vec, err := embedder.EmbedText(context.Background(), "munich programmes")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}
