package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mocknhire/interview-gateway/internal/models"
	"github.com/mocknhire/interview-gateway/pkg/events"
)

type failingBackend struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (b *failingBackend) bump() error {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()
	if n == 2 {
		close(b.done)
	}
	return errors.New("backend down")
}

func (b *failingBackend) NextQuestion(context.Context, uuid.UUID, int) (*models.Question, error) {
	return nil, errors.New("backend down")
}
func (b *failingBackend) SubmitAnswer(context.Context, uuid.UUID, int) error  { return b.bump() }
func (b *failingBackend) AnalyzeStress(context.Context, uuid.UUID, int) error { return b.bump() }
func (b *failingBackend) FinalReport(context.Context, uuid.UUID) error {
	return errors.New("backend down")
}

func TestNotifyFailuresGoToSinkOnly(t *testing.T) {
	backend := &failingBackend{done: make(chan struct{})}
	sink := &memorySink{}
	n := NewNotifier(backend, sink, nil)

	// Notify must return immediately even though both calls will fail.
	start := time.Now()
	n.Notify(uuid.New(), 3)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	select {
	case <-backend.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifications never fired")
	}

	deadline := time.After(2 * time.Second)
	for {
		kinds := sink.kinds()
		if len(kinds) == 2 {
			assert.Equal(t, []string{events.KindNotifyFailed, events.KindNotifyFailed}, kinds)
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected 2 sink events, got %d", len(kinds))
		case <-time.After(10 * time.Millisecond):
		}
	}
}
