// Package gateway is the candidate-facing control channel: a WebSocket per
// session carrying interview control events and WebRTC signaling, with session
// updates and the final report flowing back.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/mocknhire/interview-gateway/internal/auth"
	"github.com/mocknhire/interview-gateway/internal/capture"
	"github.com/mocknhire/interview-gateway/internal/interview"
	"github.com/mocknhire/interview-gateway/internal/recorder"
	"github.com/mocknhire/interview-gateway/internal/report"
	"github.com/mocknhire/interview-gateway/internal/session"
	"github.com/mocknhire/interview-gateway/pkg/events"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS layer in front
	},
}

// WSMessage is the control-channel message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler builds a session runtime per WebSocket connection.
type Handler struct {
	tokens  *auth.TokenService
	ice     []webrtc.ICEServer
	backend interview.Backend
	uploads session.Uploads
	store   session.SessionStore
	reports report.Store
	sink    events.Sink
	log     *zap.Logger
}

// NewHandler wires the shared collaborators for all sessions.
func NewHandler(tokens *auth.TokenService, ice []webrtc.ICEServer, backend interview.Backend, uploads session.Uploads, store session.SessionStore, reports report.Store, sink events.Sink, log *zap.Logger) *Handler {
	if sink == nil {
		sink = events.NopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		tokens:  tokens,
		ice:     ice,
		backend: backend,
		uploads: uploads,
		store:   store,
		reports: reports,
		sink:    sink,
		log:     log,
	}
}

// client is one connected candidate.
type client struct {
	sessionID uuid.UUID
	conn      *websocket.Conn
	stream    *capture.WebRTCStream
	ctrl      *session.Controller
	handler   *Handler
	send      chan WSMessage
	log       *zap.Logger
}

// ServeWs upgrades the connection and runs the session until the candidate
// leaves or the connection drops. Token and session id come in the query
// because browsers cannot set headers on WebSocket dials.
func (h *Handler) ServeWs() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		token := c.Query("token")
		if sessionIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and token required"})
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		claims, err := h.tokens.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.SessionID != sessionID {
			c.JSON(http.StatusForbidden, gin.H{"error": "token not bound to session"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		log := h.log.With(zap.String("session_id", sessionID.String()))
		stream := capture.NewWebRTCStream(h.ice, log)
		pair := recorder.NewPair(stream, nil, log)
		ctrl := session.NewController(session.Config{
			SessionID: sessionID,
			Stream:    stream,
			Pair:      pair,
			Uploads:   h.uploads,
			Backend:   h.backend,
			Store:     h.store,
			Sink:      h.sink,
			Logger:    log,
		})

		cl := &client{
			sessionID: sessionID,
			conn:      conn,
			stream:    stream,
			ctrl:      ctrl,
			handler:   h,
			send:      make(chan WSMessage, 64),
			log:       log,
		}
		go cl.writePump()
		go cl.forwardUpdates()
		cl.readPump()
	}
}

// sendEvent queues an outbound message, dropping when the writer is stuck.
func (cl *client) sendEvent(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		cl.log.Warn("marshal outbound event failed", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case cl.send <- WSMessage{Event: event, Data: data}:
	default:
		cl.log.Warn("outbound event dropped", zap.String("event", event))
	}
}

// forwardUpdates relays session updates to the socket and kicks off the
// report flow when the session completes. It exits with the controller.
func (cl *client) forwardUpdates() {
	for {
		select {
		case u := <-cl.ctrl.Updates():
			cl.sendEvent(string(u.Kind), u)
			if u.Kind == session.UpdateCompleted {
				go cl.runReportFlow()
			}
		case <-cl.ctrl.Done():
			return
		}
	}
}

// runReportFlow polls until the report exists, then ships the joined view.
// A fatal poll error becomes a redirect instruction for the UI. The poll
// context dies with the connection, so navigating away cancels the redirect
// timer rather than leaving it to fire later.
func (cl *client) runReportFlow() {
	if cl.handler.reports == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-cl.ctrl.Done()
		cancel()
	}()

	poller := report.NewPoller(cl.handler.reports, cl.handler.sink, cl.log)
	outcome := poller.Run(ctx, cl.sessionID)
	if outcome.Err != nil {
		cl.sendEvent("report_error", map[string]string{
			"error":    "report unavailable",
			"redirect": "/dashboard/student",
		})
		return
	}
	cl.sendEvent("report_ready", outcome.View)
}

func (cl *client) readPump() {
	defer func() {
		// Mandatory teardown on every exit path: device tracks, timers, ctx.
		cl.ctrl.Teardown()
		_ = cl.conn.Close()
	}()

	cl.conn.SetReadLimit(1 << 20)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := context.Background()
	for {
		var msg WSMessage
		if err := cl.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Event {
		case "join":
			if err := cl.ctrl.Mount(ctx); err != nil {
				cl.log.Warn("session mount failed", zap.Error(err))
				cl.sendEvent("session_error", map[string]string{
					"error":    "session not found",
					"redirect": "/dashboard/student",
				})
				return
			}
		case "capture_offer":
			var payload struct {
				SDP string `json:"sdp"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.SDP != "" {
				sdp := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: payload.SDP}
				if err := cl.stream.HandleOffer(sdp, cl.sendEvent); err != nil {
					cl.log.Warn("capture offer failed", zap.Error(err))
				}
			}
		case "capture_ice":
			var payload struct {
				Candidate json.RawMessage `json:"candidate"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err == nil && len(payload.Candidate) > 0 {
				var cand webrtc.ICECandidateInit
				if json.Unmarshal(payload.Candidate, &cand) == nil {
					_ = cl.stream.AddICECandidate(cand)
				}
			}
		case "capture_unavailable":
			cl.ctrl.CaptureUnavailable(ctx)
		case "start_answer":
			cl.ctrl.StartAnswer()
		case "next_question":
			if err := cl.ctrl.Next(ctx); err != nil {
				cl.log.Warn("advance failed", zap.Error(err))
			}
		case "toggle_video":
			cl.ctrl.ToggleVideo(toggleEnabled(msg.Data))
		case "toggle_audio":
			cl.ctrl.ToggleAudio(toggleEnabled(msg.Data))
		case "leave":
			return
		default:
			// ignore
		}
	}
}

func toggleEnabled(data json.RawMessage) bool {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	_ = json.Unmarshal(data, &payload)
	return payload.Enabled
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.ctrl.Done():
			_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
