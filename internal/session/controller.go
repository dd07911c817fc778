// Package session runs one mock-interview attempt end to end: question
// advancement, recorder finalization, artifact upload, next-question prefetch,
// best-effort backend notification and completion.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mocknhire/interview-gateway/internal/interview"
	"github.com/mocknhire/interview-gateway/internal/models"
	"github.com/mocknhire/interview-gateway/internal/recorder"
	"github.com/mocknhire/interview-gateway/pkg/events"
)

// DefaultTimeLimit applies when the backend returns a question without one.
const DefaultTimeLimit = 120

// UpdateKind labels outbound session updates for the control channel.
type UpdateKind string

const (
	UpdateQuestion     UpdateKind = "question"
	UpdateCompleted    UpdateKind = "session_completed"
	UpdateUploadFailed UpdateKind = "upload_failed"
	UpdateNotice       UpdateKind = "notice"
)

// Update is one outbound event for the candidate's UI.
type Update struct {
	Kind     UpdateKind       `json:"kind"`
	Question *models.Question `json:"question,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

// SessionStore records lifecycle timestamps for the session row. Writes are
// best-effort; the controller logs failures and moves on.
type SessionStore interface {
	MarkCompleted(ctx context.Context, sessionID uuid.UUID) error
}

// Uploads pushes both artifacts of a finalized question. Satisfied by
// artifacts.Uploader.
type Uploads interface {
	UploadQuestion(ctx context.Context, sessionID uuid.UUID, questionNumber int, video, audio []byte) error
}

// Controller owns the per-session state machine. The question list and current
// index are only mutated under mu from the control-channel goroutine and the
// countdown timer, so ordering matches the single event loop the flow assumes.
type Controller struct {
	id       uuid.UUID
	pair     *recorder.Pair
	stream   StreamControls
	uploads  Uploads
	backend  interview.Backend
	notifier *Notifier
	store    SessionStore
	sink     events.Sink
	log      *zap.Logger

	mu        sync.Mutex
	questions []models.Question
	current   int // index into questions
	state     models.SessionState
	answering bool
	advancing bool
	countdown *time.Timer

	updates   chan Update
	noCapture sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// StreamControls is the slice of capture.Stream the controller needs. Nil when
// device permission was denied.
type StreamControls interface {
	SetVideoEnabled(bool)
	SetAudioEnabled(bool)
	Stop()
}

// Config wires a controller's collaborators.
type Config struct {
	SessionID uuid.UUID
	Stream    StreamControls // nil = no device access
	Pair      *recorder.Pair
	Uploads   Uploads
	Backend   interview.Backend
	Store     SessionStore
	Sink      events.Sink
	Logger    *zap.Logger
}

// NewController creates a controller for one session.
func NewController(cfg Config) *Controller {
	sink := cfg.Sink
	if sink == nil {
		sink = events.NopSink{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		id:       cfg.SessionID,
		pair:     cfg.Pair,
		stream:   cfg.Stream,
		uploads:  cfg.Uploads,
		backend:  cfg.Backend,
		notifier: NewNotifier(cfg.Backend, sink, log),
		store:    cfg.Store,
		sink:     sink,
		log:      log.With(zap.String("session_id", cfg.SessionID.String())),
		state:    models.SessionStateActive,
		updates:  make(chan Update, 32),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Updates is the outbound event feed consumed by the control channel.
func (c *Controller) Updates() <-chan Update { return c.updates }

// Done closes when the controller has been torn down.
func (c *Controller) Done() <-chan struct{} { return c.ctx.Done() }

// Mount fetches question 1 and emits it when the candidate joins. Idempotent:
// a repeated join re-emits the question on display instead of fetching again.
// If device permission was denied the candidate is told once and the session
// continues with recording as a no-op.
func (c *Controller) Mount(ctx context.Context) error {
	if c.stream == nil {
		c.CaptureUnavailable(ctx)
	}

	c.mu.Lock()
	if c.state == models.SessionStateCompleted {
		c.mu.Unlock()
		c.emit(Update{Kind: UpdateCompleted})
		return nil
	}
	if len(c.questions) > 0 {
		q := c.questions[c.current]
		c.mu.Unlock()
		c.emit(Update{Kind: UpdateQuestion, Question: &q})
		return nil
	}
	c.mu.Unlock()

	q, err := c.backend.NextQuestion(ctx, c.id, 1)
	if err != nil {
		return err
	}
	c.mu.Lock()
	// A concurrent mount may have won the fetch race.
	if len(c.questions) == 0 {
		c.questions = append(c.questions, *q)
		c.current = 0
	}
	c.mu.Unlock()
	c.emit(Update{Kind: UpdateQuestion, Question: q})
	return nil
}

// CaptureUnavailable records that the candidate's device permission was
// denied after mount. The candidate is notified exactly once; the session
// keeps going and recordings finalize as empty artifacts.
func (c *Controller) CaptureUnavailable(ctx context.Context) {
	c.noCapture.Do(func() {
		c.emit(Update{Kind: UpdateNotice, Detail: "camera access unavailable, continuing without recording"})
		c.sink.Emit(ctx, events.Event{Kind: events.KindPermissionDenied, SessionID: c.id})
	})
}

// Current returns the question on display.
func (c *Controller) Current() (models.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current >= len(c.questions) {
		return models.Question{}, false
	}
	return c.questions[c.current], true
}

// State returns the session lifecycle state.
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartAnswer begins recording the current question and arms the countdown.
// Without a stream the recorders stay idle and only the countdown runs. A
// no-op before the session is mounted; control events may arrive out of
// order from the socket.
func (c *Controller) StartAnswer() {
	c.mu.Lock()
	if c.answering || c.state != models.SessionStateActive || len(c.questions) == 0 {
		c.mu.Unlock()
		return
	}
	c.answering = true
	q := c.questions[c.current]
	limit := q.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	c.countdown = time.AfterFunc(time.Duration(limit)*time.Second, func() {
		// Time-limit expiry advances exactly like an explicit "next".
		if err := c.Next(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn("auto-advance failed", zap.Error(err))
		}
	})
	c.mu.Unlock()
	c.pair.Start()
}

// ToggleVideo and ToggleAudio gate device tracks without tearing down the
// stream. No-ops when there is no stream.
func (c *Controller) ToggleVideo(enabled bool) {
	if c.stream != nil {
		c.stream.SetVideoEnabled(enabled)
	}
}

func (c *Controller) ToggleAudio(enabled bool) {
	if c.stream != nil {
		c.stream.SetAudioEnabled(enabled)
	}
}

// Next finalizes the current question and advances the session. The pipeline:
// stop both recorders (barrier), build blobs, then upload and prefetch the
// next question concurrently. The next question is shown once the prefetch
// succeeds and the upload has started; it never waits for the upload to
// finish. Once the upload settles the backend notifier fires without being
// awaited. A prefetch miss means the session is complete: report generation
// is triggered (not awaited) and the session transitions to completed.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	if c.advancing || c.state != models.SessionStateActive || len(c.questions) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.advancing = true
	c.answering = false
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	number := c.questions[c.current].Number
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.advancing = false
		c.mu.Unlock()
	}()

	video, audio, err := c.pair.Finalize(ctx)
	if err != nil {
		return err
	}

	// Upload and prefetch race in parallel; they are round trips to different
	// backends and neither orders the other.
	uploadStarted := make(chan struct{})
	uploadDone := make(chan error, 1)
	go func() {
		close(uploadStarted)
		uploadDone <- c.uploads.UploadQuestion(c.ctx, c.id, number, video, audio)
	}()
	go c.settleUploads(number, uploadDone)

	next, fetchErr := c.backend.NextQuestion(ctx, c.id, number+1)

	// The next question may not be displayed before this question's artifacts
	// have at least begun upload.
	select {
	case <-uploadStarted:
	case <-ctx.Done():
		return ctx.Err()
	}

	if fetchErr != nil {
		// Any fetch miss drives normal completion.
		if !errors.Is(fetchErr, interview.ErrNoQuestion) {
			c.log.Warn("next-question fetch failed, completing session", zap.Error(fetchErr))
		}
		c.complete()
		return nil
	}

	// Displayed question numbers are strictly increasing; a backend response
	// that does not advance is ignored.
	c.mu.Lock()
	advanced := false
	if last := len(c.questions); last == 0 || c.questions[last-1].Number < next.Number {
		c.questions = append(c.questions, *next)
		c.current = len(c.questions) - 1
		advanced = true
	}
	c.mu.Unlock()
	if !advanced {
		c.log.Warn("backend returned non-advancing question, ignoring", zap.Int("number", next.Number))
		c.pair.Reset()
		return nil
	}
	c.pair.Reset()
	c.emit(Update{Kind: UpdateQuestion, Question: next})
	return nil
}

// settleUploads waits for the question's uploads to settle, surfaces terminal
// failure, and only then fires the best-effort backend notifications.
func (c *Controller) settleUploads(number int, uploadDone <-chan error) {
	err := <-uploadDone
	if err != nil {
		c.log.Error("artifact upload failed", zap.Int("question", number), zap.Error(err))
		c.emit(Update{Kind: UpdateUploadFailed, Detail: err.Error()})
		c.sink.Emit(c.ctx, events.Event{
			Kind:           events.KindUploadFailed,
			SessionID:      c.id,
			QuestionNumber: number,
			Detail:         err.Error(),
		})
	}
	c.notifier.Notify(c.id, number)
}

// complete marks the session finished, fires report generation without
// awaiting it, and tells the UI to move to the summary view.
func (c *Controller) complete() {
	c.mu.Lock()
	c.state = models.SessionStateCompleted
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := c.backend.FinalReport(ctx, c.id); err != nil {
			c.log.Warn("final report trigger failed", zap.Error(err))
		}
		if c.store != nil {
			if err := c.store.MarkCompleted(ctx, c.id); err != nil {
				c.log.Warn("mark session completed failed", zap.Error(err))
			}
		}
	}()

	c.emit(Update{Kind: UpdateCompleted})
	c.log.Info("session completed")
}

// Teardown releases all session resources. It runs on every exit path:
// explicit leave, connection drop, and early redirects.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	c.mu.Unlock()
	c.cancel()
	if c.stream != nil {
		c.stream.Stop()
	}
}

func (c *Controller) emit(u Update) {
	select {
	case c.updates <- u:
	default:
		c.log.Warn("update dropped, slow consumer", zap.String("kind", string(u.Kind)))
	}
}
