package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type completerFunc func(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (*ProviderResponse, error)

func (f completerFunc) Complete(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (*ProviderResponse, error) {
	return f(ctx, messages, temperature, maxTokens)
}

func fixedReply(content string) completerFunc {
	return func(context.Context, []ChatMessage, float64, int) (*ProviderResponse, error) {
		return &ProviderResponse{Content: content, Provider: "stub"}, nil
	}
}

func TestExtractIntentParsesJSON(t *testing.T) {
	e := NewModelIntentExtractor(fixedReply(`{"degree_type":"Master","field":"Computer Science","city":"Munich","budget_max":1000}`), zap.NewNop())

	intent := e.ExtractIntent(context.Background(), "cheap CS masters in munich", nil)
	assert.Equal(t, "Master", intent.DegreeType)
	assert.Equal(t, "Computer Science", intent.Field)
	assert.Equal(t, "Munich", intent.City)
	require.NotNil(t, intent.BudgetMax)
	assert.Equal(t, 1000.0, *intent.BudgetMax)
	assert.Equal(t, "cheap CS masters in munich", intent.RawQuery)
	assert.False(t, intent.Empty())
}

func TestExtractIntentStripsCodeFences(t *testing.T) {
	e := NewModelIntentExtractor(fixedReply("```json\n{\"degree_type\":\"Bachelor\"}\n```"), zap.NewNop())

	intent := e.ExtractIntent(context.Background(), "bachelor options", nil)
	assert.Equal(t, "Bachelor", intent.DegreeType)
}

func TestExtractIntentGarbageFallsBack(t *testing.T) {
	e := NewModelIntentExtractor(fixedReply("I think the student wants a master's degree."), zap.NewNop())

	intent := e.ExtractIntent(context.Background(), "what should I study", nil)
	assert.True(t, intent.Empty())
	assert.Equal(t, "what should I study", intent.RawQuery)
}

func TestExtractIntentProviderErrorFallsBack(t *testing.T) {
	failing := completerFunc(func(context.Context, []ChatMessage, float64, int) (*ProviderResponse, error) {
		return nil, errors.New("provider down")
	})
	e := NewModelIntentExtractor(failing, zap.NewNop())

	intent := e.ExtractIntent(context.Background(), "programmes in berlin", nil)
	assert.True(t, intent.Empty())
	assert.Equal(t, "programmes in berlin", intent.RawQuery)
}

func TestNullIntentExtractor(t *testing.T) {
	intent := NullIntentExtractor{}.ExtractIntent(context.Background(), "anything", nil)
	assert.True(t, intent.Empty())
	assert.Equal(t, "anything", intent.RawQuery)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
}
