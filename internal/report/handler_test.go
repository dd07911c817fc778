package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocknhire/interview-gateway/internal/middleware"
	"github.com/mocknhire/interview-gateway/internal/models"
	"github.com/mocknhire/interview-gateway/pkg/response"
)

func newReportRouter(store Store, tokenSession *uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(store, nil)
	router.GET("/sessions/:id/report", func(c *gin.Context) {
		if tokenSession != nil {
			c.Set(middleware.ContextSessionID, *tokenSession)
		}
		h.GetBySession(c)
	})
	return router
}

func doGet(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestGetReportBySession(t *testing.T) {
	sessionID := uuid.New()
	store := &memoryStore{
		report:    sampleReport(sessionID),
		questions: []models.ReportQuestion{{Number: 1, Text: "q1"}},
	}
	router := newReportRouter(store, &sessionID)

	w, body := doGet(t, router, "/sessions/"+sessionID.String()+"/report")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
}

func TestGetReportStillProcessing(t *testing.T) {
	sessionID := uuid.New()
	store := &memoryStore{notReadyFor: 1 << 30}
	router := newReportRouter(store, &sessionID)

	w, body := doGet(t, router, "/sessions/"+sessionID.String()+"/report")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, body.Success)
}

func TestGetReportRejectsForeignSession(t *testing.T) {
	sessionID := uuid.New()
	other := uuid.New()
	store := &memoryStore{report: sampleReport(sessionID)}
	router := newReportRouter(store, &other)

	w, _ := doGet(t, router, "/sessions/"+sessionID.String()+"/report")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetReportInvalidID(t *testing.T) {
	store := &memoryStore{}
	router := newReportRouter(store, nil)

	w, _ := doGet(t, router, "/sessions/not-a-uuid/report")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
