package models

import (
	"time"

	"github.com/google/uuid"
)

type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
)

// Rank returns the position of the status in the forward
// pending -> in_progress -> completed progression.
func (s StepStatus) Rank() int {
	switch s {
	case StepStatusPending:
		return 0
	case StepStatusInProgress:
		return 1
	case StepStatusCompleted:
		return 2
	}
	return -1
}

// ActionPlanStep belongs to the profile's single logical plan. Sessions
// share it: multiple sessions append steps to the same profile-owned plan.
type ActionPlanStep struct {
	ID        uuid.UUID  `db:"id"`
	ProfileID uuid.UUID  `db:"profile_id"`
	Title     string     `db:"title"`
	Status    StepStatus `db:"status"`
	DueDate   *time.Time `db:"due_date"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}
