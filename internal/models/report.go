package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is the backend-produced summary row for a completed session. The
// gateway never creates or mutates it; it only polls for its existence.
type Report struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	OverallSummary string    `json:"overall_summary"`
	FinalScore     float64   `json:"final_score"`
	Recommendation string    `json:"recommendation"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReportQuestion is one row of the per-question detail collection.
type ReportQuestion struct {
	Number   int    `json:"question_number"`
	Text     string `json:"question_text"`
	Category string `json:"category"`
}

// ReportAnswer is the transcribed answer plus evaluation for one question.
type ReportAnswer struct {
	Number   int     `json:"question_number"`
	Text     string  `json:"answer_text"`
	AudioURL string  `json:"audio_url"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// StressScore is the stress-analysis result for one question.
type StressScore struct {
	Number int     `json:"question_number"`
	Score  float64 `json:"stress_score"`
	Level  string  `json:"stress_level"`
}

// ReportEntry joins question, answer and stress rows for one question number.
type ReportEntry struct {
	Question ReportQuestion `json:"question"`
	Answer   *ReportAnswer  `json:"answer,omitempty"`
	Stress   *StressScore   `json:"stress,omitempty"`
}

// ReportView is the assembled summary shown to the candidate: the report row,
// detail entries ordered by question number, and a human-readable duration.
type ReportView struct {
	Report   Report        `json:"report"`
	Entries  []ReportEntry `json:"entries"`
	Duration string        `json:"duration"`
}
