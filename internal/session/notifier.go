package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mocknhire/interview-gateway/internal/interview"
	"github.com/mocknhire/interview-gateway/pkg/events"
)

// notifyTimeout bounds each best-effort backend call so abandoned goroutines
// cannot pile up.
const notifyTimeout = 30 * time.Second

// Notifier issues the two post-upload backend calls for a question: answer
// submitted and stress analysis requested. Both are fire-and-forget: the
// session never waits on them, failures go to the event sink and are not
// retried here.
type Notifier struct {
	backend interview.Backend
	sink    events.Sink
	log     *zap.Logger
}

// NewNotifier creates a best-effort notifier.
func NewNotifier(backend interview.Backend, sink events.Sink, log *zap.Logger) *Notifier {
	if sink == nil {
		sink = events.NopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{backend: backend, sink: sink, log: log}
}

// Notify fires both notifications for the question and returns immediately.
// It is detached from the session context so navigating away does not abort
// calls already in flight.
func (n *Notifier) Notify(sessionID uuid.UUID, questionNumber int) {
	go n.fire("submit answer", questionNumber, func(ctx context.Context) error {
		return n.backend.SubmitAnswer(ctx, sessionID, questionNumber)
	}, sessionID)
	go n.fire("analyze stress", questionNumber, func(ctx context.Context) error {
		return n.backend.AnalyzeStress(ctx, sessionID, questionNumber)
	}, sessionID)
}

func (n *Notifier) fire(name string, questionNumber int, call func(context.Context) error, sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := call(ctx); err != nil {
		n.log.Warn("backend notification failed",
			zap.String("call", name),
			zap.Int("question", questionNumber),
			zap.Error(err),
		)
		n.sink.Emit(ctx, events.Event{
			Kind:           events.KindNotifyFailed,
			SessionID:      sessionID,
			QuestionNumber: questionNumber,
			Detail:         name + ": " + err.Error(),
		})
	}
}
