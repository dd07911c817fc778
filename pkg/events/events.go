package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel monitoring subscribes to.
const Channel = "gateway:events"

// Event kinds emitted by the gateway. All describe tolerated, non-fatal
// conditions; nothing downstream of an event may affect control flow.
const (
	KindPermissionDenied = "permission_denied"
	KindUploadFailed     = "upload_failed"
	KindNotifyFailed     = "notify_failed"
	KindReportPollFailed = "report_poll_failed"
)

// Event is one observable best-effort failure or signal.
type Event struct {
	Kind           string    `json:"kind"`
	SessionID      uuid.UUID `json:"session_id"`
	QuestionNumber int       `json:"question_number,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	At             time.Time `json:"at"`
}

// Sink receives best-effort events. Emit must never block the caller's flow
// on failure; implementations log and move on.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// RedisSink publishes events to a Redis channel for the monitoring pipeline.
type RedisSink struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSink creates a Redis-backed event sink.
func NewRedisSink(client *redis.Client, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{client: client, logger: logger}
}

// Emit publishes the event. Publish failures are logged, never returned.
func (s *RedisSink) Emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("event marshal failed", zap.Error(err), zap.String("kind", ev.Kind))
		return
	}
	if err := s.client.Publish(ctx, Channel, raw).Err(); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err), zap.String("kind", ev.Kind))
	}
}

// NopSink discards events. Used when Redis is not configured and in tests.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}
