package service

import (
	"testing"

	"github.com/Role1776/gigago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSystemPromptSeparatesInstruction(t *testing.T) {
	system, converted := splitSystemPrompt([]ChatMessage{
		{Role: RoleSystem, Content: "You are a counselor."},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "bye"},
	})

	assert.Equal(t, "You are a counselor.", system)
	require.Len(t, converted, 3)
	assert.Equal(t, gigago.RoleUser, converted[0].Role)
	assert.Equal(t, gigago.RoleAssistant, converted[1].Role)
	assert.Equal(t, gigago.RoleUser, converted[2].Role)
	// The system prompt never leaks into the message list
	for _, m := range converted {
		assert.NotEqual(t, "You are a counselor.", m.Content)
	}
}

func TestSplitSystemPromptWithoutSystemMessage(t *testing.T) {
	system, converted := splitSystemPrompt([]ChatMessage{
		{Role: RoleUser, Content: "hi"},
	})

	assert.Empty(t, system)
	require.Len(t, converted, 1)
	assert.Equal(t, gigago.RoleUser, converted[0].Role)
}
