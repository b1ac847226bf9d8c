package models

import (
	"time"

	"github.com/google/uuid"
)

type Feasibility string

const (
	FeasibilityLow    Feasibility = "Low"
	FeasibilityMedium Feasibility = "Medium"
	FeasibilityHigh   Feasibility = "High"
)

// ScoreDetails is the deterministic numeric verdict: overall percentage plus
// per-dimension component scores.
type ScoreDetails struct {
	Percentage float64            `json:"percentage"`
	Components map[string]float64 `json:"components"`
}

// Assessment is one feasibility evaluation of a profile. Assessments are
// recomputed on demand and retained as history, never overwritten. The
// AIExplanation is a narrative gloss generated after the numeric verdict is
// fixed; it never feeds back into the score.
type Assessment struct {
	ID                 uuid.UUID    `db:"id"`
	ProfileID          uuid.UUID    `db:"profile_id"`
	OverallFeasibility Feasibility  `db:"overall_feasibility"`
	ScoreDetails       ScoreDetails `db:"score_details"`
	KeyGaps            []string     `db:"key_gaps"`
	RecommendedActions []string     `db:"recommended_actions"`
	AIExplanation      string       `db:"ai_explanation"`
	CreatedAt          time.Time    `db:"created_at"`
}
