package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocknhire/interview-gateway/internal/auth"
	"github.com/mocknhire/interview-gateway/internal/interview"
	"github.com/mocknhire/interview-gateway/internal/models"
	"github.com/mocknhire/interview-gateway/internal/report"
)

type scriptedBackend struct {
	mu        sync.Mutex
	questions map[int]models.Question
	submitted []int
	stressed  []int
	reported  int
}

func (b *scriptedBackend) NextQuestion(ctx context.Context, sessionID uuid.UUID, number int) (*models.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.questions[number]
	if !ok {
		return nil, interview.ErrNoQuestion
	}
	return &q, nil
}

func (b *scriptedBackend) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, number int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, number)
	return nil
}

func (b *scriptedBackend) AnalyzeStress(ctx context.Context, sessionID uuid.UUID, number int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stressed = append(b.stressed, number)
	return nil
}

func (b *scriptedBackend) FinalReport(ctx context.Context, sessionID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reported++
	return nil
}

type noopUploads struct{}

func (noopUploads) UploadQuestion(ctx context.Context, sessionID uuid.UUID, number int, video, audio []byte) error {
	return nil
}

type noopStore struct{}

func (noopStore) MarkCompleted(ctx context.Context, sessionID uuid.UUID) error { return nil }

// readyReports serves a canned report immediately so the report flow resolves
// without waiting a poll interval.
type readyReports struct {
	report models.Report
}

func (r *readyReports) GetReport(ctx context.Context, sessionID uuid.UUID) (*models.Report, error) {
	rep := r.report
	rep.SessionID = sessionID
	return &rep, nil
}

func (r *readyReports) GetQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.ReportQuestion, error) {
	return []models.ReportQuestion{{Number: 1, Text: "q1"}}, nil
}

func (r *readyReports) GetAnswers(ctx context.Context, sessionID uuid.UUID) ([]models.ReportAnswer, error) {
	return nil, nil
}

func (r *readyReports) GetStressScores(ctx context.Context, sessionID uuid.UUID) ([]models.StressScore, error) {
	return nil, nil
}

func (r *readyReports) SessionTimes(ctx context.Context, sessionID uuid.UUID) (*time.Time, *time.Time, error) {
	return nil, nil, report.ErrNotFound
}

func newGatewayServer(t *testing.T, backend interview.Backend, reports report.Store) (*httptest.Server, *auth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenService("test-secret")
	h := NewHandler(tokens, nil, backend, noopUploads{}, noopStore{}, reports, nil, nil)
	router := gin.New()
	router.GET("/ws", h.ServeWs())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, tokens
}

func dialWs(t *testing.T, srv *httptest.Server, sessionID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session_id=" + sessionID.String() + "&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		raw = b
	}
	require.NoError(t, conn.WriteJSON(WSMessage{Event: event, Data: raw}))
}

func expectEvent(t *testing.T, conn *websocket.Conn, event string) WSMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == event {
			return msg
		}
	}
}

func TestSessionOverWebSocket(t *testing.T) {
	backend := &scriptedBackend{questions: map[int]models.Question{
		1: {Number: 1, Text: "q1", TimeLimit: 120},
		2: {Number: 2, Text: "q2", TimeLimit: 120},
	}}
	srv, tokens := newGatewayServer(t, backend, &readyReports{report: models.Report{OverallSummary: "fine"}})
	sessionID := uuid.New()
	token, err := tokens.Generate(uuid.New(), sessionID, time.Hour)
	require.NoError(t, err)

	conn := dialWs(t, srv, sessionID, token)

	send(t, conn, "join", nil)
	msg := expectEvent(t, conn, "question")
	var update struct {
		Question models.Question `json:"question"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, 1, update.Question.Number)

	send(t, conn, "next_question", nil)
	msg = expectEvent(t, conn, "question")
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, 2, update.Question.Number)

	send(t, conn, "next_question", nil)
	expectEvent(t, conn, "session_completed")

	msg = expectEvent(t, conn, "report_ready")
	var view models.ReportView
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, "fine", view.Report.OverallSummary)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.reported)
}

func TestJoinUnknownSessionRedirects(t *testing.T) {
	backend := &scriptedBackend{questions: map[int]models.Question{}}
	srv, tokens := newGatewayServer(t, backend, nil)
	sessionID := uuid.New()
	token, err := tokens.Generate(uuid.New(), sessionID, time.Hour)
	require.NoError(t, err)

	conn := dialWs(t, srv, sessionID, token)
	send(t, conn, "join", nil)
	msg := expectEvent(t, conn, "session_error")
	var payload map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "/dashboard/student", payload["redirect"])
}

func TestWsRejectsBadAuth(t *testing.T) {
	backend := &scriptedBackend{questions: map[int]models.Question{}}
	srv, tokens := newGatewayServer(t, backend, nil)
	sessionID := uuid.New()

	cases := map[string]string{
		"missing token": srv.URL + "/ws?session_id=" + sessionID.String(),
		"bad token":     srv.URL + "/ws?session_id=" + sessionID.String() + "&token=nope",
	}
	for name, url := range cases {
		t.Run(name, func(t *testing.T) {
			wsURL := "ws" + strings.TrimPrefix(url, "http")
			_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.GreaterOrEqual(t, resp.StatusCode, http.StatusBadRequest)
			resp.Body.Close()
		})
	}

	t.Run("token bound to other session", func(t *testing.T) {
		token, err := tokens.Generate(uuid.New(), uuid.New(), time.Hour)
		require.NoError(t, err)
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session_id=" + sessionID.String() + "&token=" + token
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
}
