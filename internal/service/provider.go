package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrNoProviderConfigured means neither the primary nor the fallback
	// chat provider has credentials. Raised before any network call.
	ErrNoProviderConfigured = errors.New("no AI provider configured")

	// ErrAllProvidersUnavailable means the primary and the fallback both
	// failed for a single completion call.
	ErrAllProvidersUnavailable = errors.New("all AI providers unavailable")
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderResponse is the vendor-neutral result of one completion call.
// Provider records which vendor actually served the request.
type ProviderResponse struct {
	Content  string
	Provider string
	Model    string
	Usage    Usage
}

// ProviderClient is one chat-completion vendor. Implementations make exactly
// one attempt per call; retries and failover belong to the Gateway.
type ProviderClient interface {
	Provider() string
	Model() string
	Complete(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (*ProviderResponse, error)
}

// ChatCompleter is the completion capability consumers depend on. The
// Gateway implements it; tests substitute stubs.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (*ProviderResponse, error)
}

// Gateway unifies the primary and fallback providers behind one Complete
// call. It keeps no cross-call state: every call decides failover on its own.
type Gateway struct {
	primary  ProviderClient
	fallback ProviderClient
	logger   *zap.Logger
}

func NewGateway(primary, fallback ProviderClient, logger *zap.Logger) *Gateway {
	return &Gateway{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Complete tries the primary provider, then the fallback with the same
// message list. Any primary error (transport, auth, non-2xx, timeout)
// triggers failover; the caller only sees ErrAllProvidersUnavailable when
// both attempts fail.
func (g *Gateway) Complete(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (*ProviderResponse, error) {
	if g.primary == nil && g.fallback == nil {
		return nil, ErrNoProviderConfigured
	}

	var lastErr error

	if g.primary != nil {
		resp, err := g.primary.Complete(ctx, messages, temperature, maxTokens)
		if err == nil {
			g.logger.Info("Chat completion served",
				zap.String("provider", resp.Provider),
				zap.String("model", resp.Model),
				zap.Int("total_tokens", resp.Usage.TotalTokens),
			)
			return resp, nil
		}
		lastErr = err
		g.logger.Warn("Primary provider failed, trying fallback",
			zap.String("provider", g.primary.Provider()),
			zap.Error(err),
		)
	}

	if g.fallback != nil {
		resp, err := g.fallback.Complete(ctx, messages, temperature, maxTokens)
		if err == nil {
			g.logger.Info("Chat completion served",
				zap.String("provider", resp.Provider),
				zap.String("model", resp.Model),
				zap.Int("total_tokens", resp.Usage.TotalTokens),
			)
			return resp, nil
		}
		lastErr = err
		g.logger.Error("Fallback provider failed",
			zap.String("provider", g.fallback.Provider()),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w: %v", ErrAllProvidersUnavailable, lastErr)
}
