package models

import (
	"time"

	"github.com/google/uuid"
)

// CounselorSession is one conversation thread. Immutable after creation
// except for the title.
type CounselorSession struct {
	ID             uuid.UUID `db:"id"`
	OwnerProfileID uuid.UUID `db:"owner_profile_id"`
	Title          string    `db:"title"`
	Purpose        string    `db:"purpose"`
	CreatedAt      time.Time `db:"created_at"`
}

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Source is a provenance reference attached to an assistant message. Every
// source must point at a document that existed in the index or structured
// store when the reply was generated.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Message is one transcript entry. Messages are append-only; transcript
// order is (created_at, seq) where seq is the insertion sequence.
type Message struct {
	ID          uuid.UUID `db:"id"`
	SessionID   uuid.UUID `db:"session_id"`
	Seq         int64     `db:"seq"`
	Sender      Sender    `db:"sender"`
	Text        string    `db:"text"`
	Sources     []Source  `db:"sources"`
	PlanUpdates bool      `db:"plan_updates"`
	CreatedAt   time.Time `db:"created_at"`
}
