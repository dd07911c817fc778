// Package report polls the report store for a completed session's summary and
// assembles the joined view shown to the candidate.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mocknhire/interview-gateway/internal/models"
)

// ErrNotFound means the report row does not exist yet. It is the one error
// the poller treats as "not ready"; everything else is fatal to the poll loop.
var ErrNotFound = errors.New("report not found")

// Store is the report-store surface the poller depends on.
type Store interface {
	GetReport(ctx context.Context, sessionID uuid.UUID) (*models.Report, error)
	GetQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.ReportQuestion, error)
	GetAnswers(ctx context.Context, sessionID uuid.UUID) ([]models.ReportAnswer, error)
	GetStressScores(ctx context.Context, sessionID uuid.UUID) ([]models.StressScore, error)
	SessionTimes(ctx context.Context, sessionID uuid.UUID) (start, end *time.Time, err error)
}

// Repository reads report rows and per-question detail collections.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a report repository over the pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetReport returns the report row for the session, or ErrNotFound when it has
// not been produced yet. The sentinel keeps "not ready" structurally distinct
// from transport or query errors.
func (r *Repository) GetReport(ctx context.Context, sessionID uuid.UUID) (*models.Report, error) {
	var rep models.Report
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, overall_summary, final_score, recommendation, created_at
		FROM mock_interview_reports
		WHERE session_id = $1
	`, sessionID).Scan(&rep.ID, &rep.SessionID, &rep.OverallSummary, &rep.FinalScore, &rep.Recommendation, &rep.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &rep, nil
}

// GetQuestions returns the session's question rows ordered by number.
func (r *Repository) GetQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.ReportQuestion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT question_number, question_text, category
		FROM mock_interview_questions
		WHERE session_id = $1
		ORDER BY question_number
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	defer rows.Close()

	var out []models.ReportQuestion
	for rows.Next() {
		var q models.ReportQuestion
		if err := rows.Scan(&q.Number, &q.Text, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GetAnswers returns the session's transcribed answers.
func (r *Repository) GetAnswers(ctx context.Context, sessionID uuid.UUID) ([]models.ReportAnswer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT question_number, answer_text, audio_url, score, feedback
		FROM mock_interview_answers
		WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	defer rows.Close()

	var out []models.ReportAnswer
	for rows.Next() {
		var a models.ReportAnswer
		if err := rows.Scan(&a.Number, &a.Text, &a.AudioURL, &a.Score, &a.Feedback); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetStressScores returns the session's per-question stress results.
func (r *Repository) GetStressScores(ctx context.Context, sessionID uuid.UUID) ([]models.StressScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT question_number, stress_score, stress_level
		FROM mock_interview_stress_analysis
		WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get stress scores: %w", err)
	}
	defer rows.Close()

	var out []models.StressScore
	for rows.Next() {
		var s models.StressScore
		if err := rows.Scan(&s.Number, &s.Score, &s.Level); err != nil {
			return nil, fmt.Errorf("scan stress score: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SessionTimes returns the session start/end timestamps; either may be nil.
func (r *Repository) SessionTimes(ctx context.Context, sessionID uuid.UUID) (start, end *time.Time, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT start_time, end_time
		FROM mock_interview_sessions
		WHERE id = $1
	`, sessionID).Scan(&start, &end)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("session times: %w", err)
	}
	return start, end, nil
}

// MarkCompleted stamps the session's end time. Best-effort, called once when
// the last question is answered.
func (r *Repository) MarkCompleted(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE mock_interview_sessions
		SET end_time = NOW()
		WHERE id = $1 AND end_time IS NULL
	`, sessionID)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}
