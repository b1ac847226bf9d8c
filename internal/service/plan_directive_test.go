package service

import (
	"testing"

	"uni-counselor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanDirectivesNoBlock(t *testing.T) {
	text := "You should look at TUM and RWTH."
	directives, remainder, err := ParsePlanDirectives(text)
	require.NoError(t, err)
	assert.Nil(t, directives)
	assert.Equal(t, text, remainder)
}

func TestParsePlanDirectivesValidAdd(t *testing.T) {
	text := "Let's get your IELTS sorted.\n\n```plan\n{\"version\":1,\"steps\":[{\"action\":\"add\",\"title\":\"Book IELTS exam\",\"status\":\"pending\",\"due_date\":\"2026-10-01\"}]}\n```"

	directives, remainder, err := ParsePlanDirectives(text)
	require.NoError(t, err)
	require.Len(t, directives, 1)
	assert.Equal(t, DirectiveAdd, directives[0].Action)
	assert.Equal(t, "Book IELTS exam", directives[0].Title)
	assert.Equal(t, models.StepStatusPending, directives[0].Status)
	require.NotNil(t, directives[0].ParsedDueDate())
	assert.Equal(t, "Let's get your IELTS sorted.", remainder)
}

func TestParsePlanDirectivesUpdate(t *testing.T) {
	text := "Great progress!\n```plan\n{\"version\":1,\"steps\":[{\"action\":\"update\",\"title\":\"Book IELTS exam\",\"status\":\"completed\"}]}\n```"

	directives, _, err := ParsePlanDirectives(text)
	require.NoError(t, err)
	require.Len(t, directives, 1)
	assert.Equal(t, DirectiveUpdate, directives[0].Action)
	assert.Equal(t, models.StepStatusCompleted, directives[0].Status)
	assert.Nil(t, directives[0].ParsedDueDate())
}

func TestParsePlanDirectivesInvalidJSONStillStripped(t *testing.T) {
	text := "Reply text.\n```plan\nnot json at all\n```"

	directives, remainder, err := ParsePlanDirectives(text)
	assert.Error(t, err)
	assert.Nil(t, directives)
	// The raw block never reaches the user even when unparseable
	assert.Equal(t, "Reply text.", remainder)
}

func TestParsePlanDirectivesRejections(t *testing.T) {
	cases := map[string]string{
		"wrong version":         `{"version":2,"steps":[{"action":"add","title":"x"}]}`,
		"no steps":              `{"version":1,"steps":[]}`,
		"unknown action":        `{"version":1,"steps":[{"action":"remove","title":"x"}]}`,
		"missing title":         `{"version":1,"steps":[{"action":"add","title":"  "}]}`,
		"unknown status":        `{"version":1,"steps":[{"action":"add","title":"x","status":"done"}]}`,
		"update without status": `{"version":1,"steps":[{"action":"update","title":"x"}]}`,
		"bad due date":          `{"version":1,"steps":[{"action":"add","title":"x","due_date":"next week"}]}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParsePlanDirectives("text\n```plan\n" + payload + "\n```")
			assert.Error(t, err)
		})
	}
}

func TestParsePlanDirectivesMultipleSteps(t *testing.T) {
	text := "```plan\n{\"version\":1,\"steps\":[{\"action\":\"add\",\"title\":\"a\"},{\"action\":\"add\",\"title\":\"b\"}]}\n```"

	directives, remainder, err := ParsePlanDirectives(text)
	require.NoError(t, err)
	assert.Len(t, directives, 2)
	assert.Empty(t, remainder)
}
