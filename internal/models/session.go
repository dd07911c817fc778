package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionState describes where a mock-interview session is in its lifecycle.
type SessionState string

const (
	SessionStateActive    SessionState = "active"
	SessionStateCompleted SessionState = "completed"
)

// Session is one end-to-end mock-interview attempt. It is created by the
// interview backend before the gateway ever sees it; the gateway only advances
// it one question at a time.
type Session struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	State     SessionState `json:"state"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// Question is a single interview prompt. Immutable once fetched; the gateway
// caches only questions it has already shown, one ahead.
type Question struct {
	Number    int    `json:"question_number"`
	Text      string `json:"question"`
	Category  string `json:"category"`
	TimeLimit int    `json:"time_limit"` // seconds; 0 means use the session default
}
