package recorder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mocknhire/interview-gateway/internal/capture"
)

const (
	sinkCombined = "recorder:combined"
	sinkAudio    = "recorder:audio"

	// settleDelay lets the device layer flush buffered chunks after both stop
	// signals before the bytes are treated as final.
	settleDelay = 200 * time.Millisecond
)

// Factory builds a fresh ChunkRecorder. Injectable so tests can substitute
// recorders with delayed stop completion.
type Factory func() ChunkRecorder

// Pair runs the two recorders for the current question: one combined
// video+audio, one audio-only over the same live stream. Recorders are created
// fresh per question, so a finalized question's artifacts are never rewritten
// once the next question starts recording.
type Pair struct {
	stream   capture.Stream // nil when device permission was denied
	factory  Factory
	settle   time.Duration
	log      *zap.Logger
	state    State
	combined ChunkRecorder
	audio    ChunkRecorder
}

// NewPair creates a recorder pair over the stream. A nil stream is legal:
// starts become no-ops and finalize yields empty artifacts.
func NewPair(stream capture.Stream, factory Factory, log *zap.Logger) *Pair {
	if factory == nil {
		factory = NewChunkRecorder
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pair{stream: stream, factory: factory, settle: settleDelay, log: log, state: StateIdle}
}

// SetSettleDelay overrides the post-stop settle delay (tests).
func (p *Pair) SetSettleDelay(d time.Duration) { p.settle = d }

// State returns the pair's lifecycle state for the current question.
func (p *Pair) State() State { return p.state }

// Start begins recording the current question. Guarded: without a stream it
// never panics and stays a no-op, so the session keeps advancing.
func (p *Pair) Start() {
	if p.stream == nil {
		p.log.Debug("recording skipped, no device stream")
		return
	}
	if p.state == StateRecording {
		return
	}
	p.combined = p.factory()
	p.audio = p.factory()
	p.stream.Attach(sinkCombined, p.combined, capture.TrackVideo, capture.TrackAudio)
	p.stream.Attach(sinkAudio, p.audio, capture.TrackAudio)
	p.combined.Start()
	p.audio.Start()
	p.state = StateRecording
}

// Finalize stops both recorders and returns the two artifacts' bytes. It is a
// barrier: blob construction waits for BOTH stop completions, then the settle
// delay, before chunks are read. With no stream (or never started) it returns
// empty artifacts rather than failing.
func (p *Pair) Finalize(ctx context.Context) (video, audio []byte, err error) {
	if p.stream == nil || p.state != StateRecording {
		p.state = StateFinalized
		return nil, nil, nil
	}
	p.state = StateStopping

	p.combined.Stop()
	p.audio.Stop()

	for _, done := range []<-chan struct{}{p.combined.Done(), p.audio.Done()} {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("recorder stop: %w", ctx.Err())
		}
	}

	select {
	case <-time.After(p.settle):
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("recorder settle: %w", ctx.Err())
	}

	p.stream.Detach(sinkCombined)
	p.stream.Detach(sinkAudio)

	video = p.combined.Bytes()
	audio = p.audio.Bytes()
	p.state = StateFinalized
	p.log.Debug("question recording finalized",
		zap.Int("video_bytes", len(video)),
		zap.Int("audio_bytes", len(audio)),
	)
	return video, audio, nil
}

// Reset prepares the pair for the next question.
func (p *Pair) Reset() {
	p.combined = nil
	p.audio = nil
	p.state = StateIdle
}
