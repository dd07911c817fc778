package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mocknhire/interview-gateway/internal/models"
	"github.com/mocknhire/interview-gateway/pkg/events"
)

const (
	// PollInterval is the fixed wait between report checks.
	PollInterval = 5 * time.Second
	// RedirectDelay is how long a fatal poll error is shown before the UI is
	// sent to the fallback view.
	RedirectDelay = 5 * time.Second
	// durationPlaceholder is shown when either session timestamp is missing.
	durationPlaceholder = "—"
)

// Outcome is the terminal result of one poll run.
type Outcome struct {
	View *models.ReportView // set when the report became ready
	Err  error              // set when polling failed fatally
}

// Poller watches the report store until the session's report appears, then
// fetches and joins the detail collections.
type Poller struct {
	store    Store
	sink     events.Sink
	log      *zap.Logger
	interval time.Duration
	redirect time.Duration
}

// NewPoller creates a poller over the report store.
func NewPoller(store Store, sink events.Sink, log *zap.Logger) *Poller {
	if sink == nil {
		sink = events.NopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{store: store, sink: sink, log: log, interval: PollInterval, redirect: RedirectDelay}
}

// SetTimings overrides poll interval and redirect delay (tests).
func (p *Poller) SetTimings(interval, redirect time.Duration) {
	p.interval = interval
	p.redirect = redirect
}

// Run polls until the report exists, the context is cancelled, or a fatal
// error occurs. ErrNotFound means "not ready yet" and keeps the loop alive;
// any other error stops polling, is reported to the sink, and after the
// redirect delay produces the fatal outcome. The redirect timer dies with
// ctx, so navigating away never leaves a stray redirect firing later.
func (p *Poller) Run(ctx context.Context, sessionID uuid.UUID) Outcome {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		rep, err := p.store.GetReport(ctx, sessionID)
		switch {
		case err == nil:
			view, err := assembleView(ctx, p.store, sessionID, rep)
			if err != nil {
				return p.fatal(ctx, sessionID, err)
			}
			return Outcome{View: view}
		case errors.Is(err, ErrNotFound):
			// Not ready yet; keep polling.
		default:
			return p.fatal(ctx, sessionID, err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return Outcome{Err: ctx.Err()}
		}
	}
}

func (p *Poller) fatal(ctx context.Context, sessionID uuid.UUID, err error) Outcome {
	p.log.Error("report polling failed", zap.String("session_id", sessionID.String()), zap.Error(err))
	p.sink.Emit(ctx, events.Event{
		Kind:      events.KindReportPollFailed,
		SessionID: sessionID,
		Detail:    err.Error(),
	})
	select {
	case <-time.After(p.redirect):
	case <-ctx.Done():
		return Outcome{Err: ctx.Err()}
	}
	return Outcome{Err: fmt.Errorf("report poll: %w", err)}
}

// assembleView fetches the three detail collections concurrently and joins
// them by question number, then derives the duration figure.
func assembleView(ctx context.Context, store Store, sessionID uuid.UUID, rep *models.Report) (*models.ReportView, error) {
	var (
		questions []models.ReportQuestion
		answers   []models.ReportAnswer
		stresses  []models.StressScore
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		questions, err = store.GetQuestions(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		answers, err = store.GetAnswers(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		stresses, err = store.GetStressScores(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start, end, err := store.SessionTimes(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return &models.ReportView{
		Report:   *rep,
		Entries:  joinEntries(questions, answers, stresses),
		Duration: formatDuration(start, end),
	}, nil
}

// joinEntries merges the three collections by question number, ordered.
func joinEntries(questions []models.ReportQuestion, answers []models.ReportAnswer, stresses []models.StressScore) []models.ReportEntry {
	answerByNum := make(map[int]models.ReportAnswer, len(answers))
	for _, a := range answers {
		answerByNum[a.Number] = a
	}
	stressByNum := make(map[int]models.StressScore, len(stresses))
	for _, s := range stresses {
		stressByNum[s.Number] = s
	}

	entries := make([]models.ReportEntry, 0, len(questions))
	for _, q := range questions {
		e := models.ReportEntry{Question: q}
		if a, ok := answerByNum[q.Number]; ok {
			a := a
			e.Answer = &a
		}
		if s, ok := stressByNum[q.Number]; ok {
			s := s
			e.Stress = &s
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Question.Number < entries[j].Question.Number
	})
	return entries
}

// formatDuration renders M:SS from the session timestamps, or a placeholder
// when either is missing.
func formatDuration(start, end *time.Time) string {
	if start == nil || end == nil {
		return durationPlaceholder
	}
	d := end.Sub(*start)
	if d < 0 {
		return durationPlaceholder
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
