package dto

import "uni-counselor/internal/models"

type CreateSessionRequest struct {
	Title   string `json:"title"`
	Purpose string `json:"purpose"`
}

type UpdateSessionRequest struct {
	Title string `json:"title" validate:"required,max=120"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Purpose   string `json:"purpose"`
	CreatedAt string `json:"created_at"`
}

type PostMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type MessageResponse struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	Sender      string          `json:"sender"`
	Text        string          `json:"text"`
	Sources     []models.Source `json:"sources,omitempty"`
	PlanUpdates bool            `json:"plan_updates"`
	CreatedAt   string          `json:"created_at"`
}
