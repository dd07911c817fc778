// Package interview is the REST client for the interview backend: question
// retrieval, answer submission, stress analysis and report generation.
package interview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mocknhire/interview-gateway/internal/models"
)

// ErrNoQuestion signals that the backend has no question at the requested
// number: the session is complete.
var ErrNoQuestion = errors.New("no further question")

// Backend is the interview-service surface the session controller depends on.
type Backend interface {
	NextQuestion(ctx context.Context, sessionID uuid.UUID, number int) (*models.Question, error)
	SubmitAnswer(ctx context.Context, sessionID uuid.UUID, number int) error
	AnalyzeStress(ctx context.Context, sessionID uuid.UUID, number int) error
	FinalReport(ctx context.Context, sessionID uuid.UUID) error
}

// Client talks to the interview backend over HTTP.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

type nextQuestionResponse struct {
	Question       string `json:"question"`
	Category       string `json:"category"`
	QuestionNumber int    `json:"question_number"`
	TimeLimit      int    `json:"time_limit"`
	TotalQuestions int    `json:"total_questions"`
}

// NewClient creates a client for the interview backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient, log: log}
}

// NextQuestion fetches the question at the given 1-based number. A 404 means
// the session has no question there and maps to ErrNoQuestion.
func (c *Client) NextQuestion(ctx context.Context, sessionID uuid.UUID, number int) (*models.Question, error) {
	var out nextQuestionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/interview/next-question/%s/%d", sessionID, number))
	if err != nil {
		return nil, fmt.Errorf("next question %d: %w", number, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNoQuestion
	}
	if resp.IsError() {
		return nil, fmt.Errorf("next question %d: status %d", number, resp.StatusCode())
	}
	q := &models.Question{
		Number:    out.QuestionNumber,
		Text:      out.Question,
		Category:  out.Category,
		TimeLimit: out.TimeLimit,
	}
	if q.Number == 0 {
		q.Number = number
	}
	return q, nil
}

// SubmitAnswer tells the backend the question's audio artifact is uploaded and
// ready for transcription and evaluation.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, number int) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/interview/submit-answer/%s/%d", sessionID, number))
	if err != nil {
		return fmt.Errorf("submit answer %d: %w", number, err)
	}
	if resp.IsError() {
		return fmt.Errorf("submit answer %d: status %d", number, resp.StatusCode())
	}
	return nil
}

// AnalyzeStress asks the backend to run stress scoring over the question's
// video artifact.
func (c *Client) AnalyzeStress(ctx context.Context, sessionID uuid.UUID, number int) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/stress/analyze-stress/%s/%d", sessionID, number))
	if err != nil {
		return fmt.Errorf("analyze stress %d: %w", number, err)
	}
	if resp.IsError() {
		return fmt.Errorf("analyze stress %d: status %d", number, resp.StatusCode())
	}
	return nil
}

// FinalReport triggers report generation for the completed session. The
// controller fires this without awaiting the report itself; readiness is
// observed by the report poller.
func (c *Client) FinalReport(ctx context.Context, sessionID uuid.UUID) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/interview/final-report/%s", sessionID))
	if err != nil {
		return fmt.Errorf("final report: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("final report: status %d", resp.StatusCode())
	}
	return nil
}
