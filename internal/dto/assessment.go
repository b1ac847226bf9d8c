package dto

type RunAssessmentRequest struct {
	Explain bool `json:"explain"`
}

type AssessmentResponse struct {
	ID                 string             `json:"id"`
	OverallFeasibility string             `json:"overall_feasibility"`
	Percentage         float64            `json:"percentage"`
	Components         map[string]float64 `json:"components"`
	KeyGaps            []string           `json:"key_gaps"`
	RecommendedActions []string           `json:"recommended_actions"`
	AIExplanation      string             `json:"ai_explanation,omitempty"`
	Disclaimer         string             `json:"disclaimer"`
	CreatedAt          string             `json:"created_at"`
}
