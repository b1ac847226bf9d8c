package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"uni-counselor/internal/models"
)

// Plan directives travel from the model to the orchestrator inside a fenced
// block the reply may append:
//
//	```plan
//	{"version":1,"steps":[{"action":"add","title":"Book IELTS exam","status":"pending","due_date":"2026-10-01"}]}
//	```
//
// The grammar is strict and versioned so malformed model output is a parse
// failure, never a silent corruption of plan state.

const planDirectiveVersion = 1

const (
	DirectiveAdd    = "add"
	DirectiveUpdate = "update"
)

type PlanDirective struct {
	Action  string            `json:"action"`
	Title   string            `json:"title"`
	Status  models.StepStatus `json:"status"`
	DueDate string            `json:"due_date"`
}

type planDirectiveEnvelope struct {
	Version int             `json:"version"`
	Steps   []PlanDirective `json:"steps"`
}

var planBlockRe = regexp.MustCompile("(?s)```plan\\s*(.*?)\\s*```")

// ParsePlanDirectives extracts the directive block from a model reply. It
// returns the directives and the reply text with the block removed. A reply
// without a block yields (nil, text, nil); a block that violates the grammar
// yields an error, with the raw block still stripped from the text.
func ParsePlanDirectives(text string) ([]PlanDirective, string, error) {
	match := planBlockRe.FindStringSubmatchIndex(text)
	if match == nil {
		return nil, text, nil
	}

	raw := text[match[2]:match[3]]
	remainder := strings.TrimSpace(text[:match[0]] + text[match[1]:])

	var envelope planDirectiveEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, remainder, fmt.Errorf("plan directive block is not valid JSON: %w", err)
	}

	if envelope.Version != planDirectiveVersion {
		return nil, remainder, fmt.Errorf("unsupported plan directive version: %d", envelope.Version)
	}
	if len(envelope.Steps) == 0 {
		return nil, remainder, fmt.Errorf("plan directive block has no steps")
	}

	for i, d := range envelope.Steps {
		if err := validateDirective(d); err != nil {
			return nil, remainder, fmt.Errorf("step %d: %w", i, err)
		}
	}

	return envelope.Steps, remainder, nil
}

func validateDirective(d PlanDirective) error {
	if d.Action != DirectiveAdd && d.Action != DirectiveUpdate {
		return fmt.Errorf("unknown action %q", d.Action)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("missing title")
	}
	if d.Status != "" && d.Status.Rank() < 0 {
		return fmt.Errorf("unknown status %q", d.Status)
	}
	if d.Action == DirectiveUpdate && d.Status == "" {
		return fmt.Errorf("update without status")
	}
	if d.DueDate != "" {
		if _, err := time.Parse("2006-01-02", d.DueDate); err != nil {
			return fmt.Errorf("bad due_date %q", d.DueDate)
		}
	}
	return nil
}

// ParsedDueDate returns the due date as a time, or nil when unset. Only call
// after validation.
func (d PlanDirective) ParsedDueDate() *time.Time {
	if d.DueDate == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", d.DueDate)
	if err != nil {
		return nil
	}
	return &t
}
