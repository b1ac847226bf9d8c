package dto

type PlanStepResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	DueDate   *string `json:"due_date,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type PlanResponse struct {
	Steps []PlanStepResponse `json:"steps"`
}

// UpdateStepRequest is the manual correction path, so any known status is
// allowed, including moving a step backwards.
type UpdateStepRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed"`
}
