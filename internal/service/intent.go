package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"uni-counselor/internal/models"

	"go.uber.org/zap"
)

// SearchIntent is the structured reading of a free-text utterance. All
// fields are advisory: an unset field imposes no filter, and retrieval never
// drops below plain raw-query matching because of the planner.
type SearchIntent struct {
	DegreeType string   `json:"degree_type"`
	Field      string   `json:"field"`
	City       string   `json:"city"`
	Language   string   `json:"language"`
	BudgetMax  *float64 `json:"budget_max"`
	RawQuery   string   `json:"-"`
}

// Empty reports whether no structured field was extracted.
func (i SearchIntent) Empty() bool {
	return i.DegreeType == "" && i.Field == "" && i.City == "" && i.Language == "" && i.BudgetMax == nil
}

// IntentExtractor classifies a user utterance into a SearchIntent. It is
// best-effort by contract: it never fails the caller.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, userText string, history []*models.Message) SearchIntent
}

// NullIntentExtractor always returns the raw query with no structured
// fields. Used when no provider is available and in deterministic tests.
type NullIntentExtractor struct{}

func (NullIntentExtractor) ExtractIntent(_ context.Context, userText string, _ []*models.Message) SearchIntent {
	return SearchIntent{RawQuery: userText}
}

// ModelIntentExtractor asks the provider gateway for a constrained JSON
// record. Any transport or parse failure degrades to a raw-query-only
// intent.
type ModelIntentExtractor struct {
	gateway ChatCompleter
	logger  *zap.Logger
}

func NewModelIntentExtractor(gateway ChatCompleter, logger *zap.Logger) *ModelIntentExtractor {
	return &ModelIntentExtractor{
		gateway: gateway,
		logger:  logger,
	}
}

const intentSystemPrompt = "You are a helper that extracts structured data from messages. Always return valid JSON only, no markdown."

func (e *ModelIntentExtractor) ExtractIntent(ctx context.Context, userText string, history []*models.Message) SearchIntent {
	fallback := SearchIntent{RawQuery: userText}

	var historyContext strings.Builder
	if len(history) > 0 {
		historyContext.WriteString("\nRecent conversation:\n")
		for _, msg := range lastMessages(history, 3) {
			fmt.Fprintf(&historyContext, "%s: %s\n", msg.Sender, msg.Text)
		}
	}

	prompt := fmt.Sprintf(`Extract search parameters for finding study programmes from this message. Return ONLY a JSON object with these fields (null if not mentioned):
- degree_type: "Bachelor", "Master", "PhD", or null
- field: field of study (e.g. "Computer Science", "Business", "Engineering")
- city: city name if mentioned, or null
- language: "English", "German", or null
- budget_max: approximate budget ceiling in EUR per year if mentioned (use a number, interpret words like "cheap" or "affordable" as 1000), or null

Message: %s
%s
Return JSON only, no explanation:`, userText, historyContext.String())

	resp, err := e.gateway.Complete(ctx, []ChatMessage{
		{Role: RoleSystem, Content: intentSystemPrompt},
		{Role: RoleUser, Content: prompt},
	}, 0.3, 200)
	if err != nil {
		e.logger.Warn("Intent extraction call failed, using raw query", zap.Error(err))
		return fallback
	}

	var intent SearchIntent
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Content)), &intent); err != nil {
		e.logger.Warn("Intent extraction reply not parseable, using raw query", zap.Error(err))
		return fallback
	}

	intent.RawQuery = userText
	return intent
}

// stripCodeFences removes markdown code fences models like to wrap JSON in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func lastMessages(history []*models.Message, n int) []*models.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
