package service

import (
	"context"
	"fmt"

	"uni-counselor/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

// GigaChatClient adapts the GigaChat SDK to the ProviderClient contract, as
// an alternative fallback vendor behind the gateway.
type GigaChatClient struct {
	client *gigago.Client
	name   string
}

func NewGigaChatClient(cfg *config.GigaChatConfig, logger *zap.Logger) (*GigaChatClient, error) {
	ctx := context.Background()

	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	return &GigaChatClient{
		client: client,
		name:   cfg.Model,
	}, nil
}

func (c *GigaChatClient) Provider() string { return "gigachat" }
func (c *GigaChatClient) Model() string    { return c.name }

func (c *GigaChatClient) Complete(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (*ProviderResponse, error) {
	system, converted := splitSystemPrompt(messages)

	// Each call gets its own model value: concurrent completions must not
	// share instruction or temperature state
	model := c.client.GenerativeModel(c.name)
	model.Temperature = temperature
	if system != "" {
		model.SystemInstruction = system
	}

	resp, err := model.Generate(ctx, converted)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from LLM")
	}

	return &ProviderResponse{
		Content:  resp.Choices[0].Message.Content,
		Provider: "gigachat",
		Model:    c.name,
	}, nil
}

func (c *GigaChatClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// splitSystemPrompt separates the system prompt from the chat turns.
// GigaChat carries the system prompt on the model, not in the message list.
func splitSystemPrompt(messages []ChatMessage) (string, []gigago.Message) {
	var system string
	var converted []gigago.Message
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleAssistant:
			converted = append(converted, gigago.Message{Role: gigago.RoleAssistant, Content: m.Content})
		default:
			converted = append(converted, gigago.Message{Role: gigago.RoleUser, Content: m.Content})
		}
	}
	return system, converted
}
