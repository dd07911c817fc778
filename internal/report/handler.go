package report

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mocknhire/interview-gateway/internal/middleware"
	"github.com/mocknhire/interview-gateway/pkg/response"
)

// Handler serves the finished report over plain HTTP, for clients that fetch
// it outside a live session (dashboard revisits, deep links).
type Handler struct {
	store Store
	log   *zap.Logger
}

// NewHandler creates a report HTTP handler.
func NewHandler(store Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, log: log}
}

// GetBySession returns the assembled report view for a session. While the
// analysis is still running the report row does not exist yet, which maps to
// 202 so clients know to retry.
func (h *Handler) GetBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	if tokenSession, ok := c.Get(middleware.ContextSessionID); ok {
		if sid, ok := tokenSession.(uuid.UUID); ok && sid != sessionID {
			response.Unauthorized(c, "token does not grant access to this session")
			return
		}
	}

	rep, err := h.store.GetReport(c.Request.Context(), sessionID)
	if errors.Is(err, ErrNotFound) {
		response.Accepted(c, gin.H{"status": "processing"})
		return
	}
	if err != nil {
		h.log.Error("get report", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to load report")
		return
	}

	view, err := assembleView(c.Request.Context(), h.store, sessionID, rep)
	if err != nil {
		h.log.Error("assemble report", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to load report")
		return
	}
	response.OK(c, view)
}
