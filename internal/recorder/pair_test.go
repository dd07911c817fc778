package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocknhire/interview-gateway/internal/capture"
)

// fakeStream records attach/detach calls and lets tests push samples.
type fakeStream struct {
	mu       sync.Mutex
	attached map[string]fakeAttachment
	detached []string
	stopped  bool
}

type fakeAttachment struct {
	sink  capture.Sink
	kinds []capture.TrackKind
}

func newFakeStream() *fakeStream {
	return &fakeStream{attached: make(map[string]fakeAttachment)}
}

func (f *fakeStream) Attach(id string, sink capture.Sink, kinds ...capture.TrackKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached[id] = fakeAttachment{sink: sink, kinds: kinds}
}

func (f *fakeStream) Detach(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attached, id)
	f.detached = append(f.detached, id)
}

func (f *fakeStream) push(s capture.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attached {
		for _, k := range a.kinds {
			if k == s.Kind {
				a.sink.WriteSample(s)
				break
			}
		}
	}
}

func (f *fakeStream) SetVideoEnabled(bool) {}
func (f *fakeStream) SetAudioEnabled(bool) {}
func (f *fakeStream) VideoEnabled() bool   { return true }
func (f *fakeStream) AudioEnabled() bool   { return true }
func (f *fakeStream) Stop()                { f.stopped = true }

// slowStopRecorder signals stop completion only after a delay, modeling a
// device layer that flushes buffers asynchronously.
type slowStopRecorder struct {
	ChunkRecorder
	delay   time.Duration
	stopped chan struct{}
}

func newSlowStopRecorder(delay time.Duration) *slowStopRecorder {
	return &slowStopRecorder{ChunkRecorder: NewChunkRecorder(), delay: delay, stopped: make(chan struct{})}
}

func (s *slowStopRecorder) Stop() {
	go func() {
		time.Sleep(s.delay)
		s.ChunkRecorder.Stop()
		close(s.stopped)
	}()
}

func TestPairRecordsBothArtifacts(t *testing.T) {
	stream := newFakeStream()
	p := NewPair(stream, nil, nil)
	p.SetSettleDelay(time.Millisecond)

	p.Start()
	assert.Equal(t, StateRecording, p.State())

	stream.push(capture.Sample{Kind: capture.TrackVideo, Data: []byte("v1")})
	stream.push(capture.Sample{Kind: capture.TrackAudio, Data: []byte("a1")})

	video, audio, err := p.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("v1a1"), video)
	assert.Equal(t, []byte("a1"), audio)
	assert.Equal(t, StateFinalized, p.State())
	assert.ElementsMatch(t, []string{sinkCombined, sinkAudio}, stream.detached)
}

func TestFinalizeWaitsForBothStops(t *testing.T) {
	stream := newFakeStream()
	slow := newSlowStopRecorder(150 * time.Millisecond)
	recorders := []ChunkRecorder{NewChunkRecorder(), slow}
	i := 0
	factory := func() ChunkRecorder {
		r := recorders[i]
		i++
		return r
	}
	p := NewPair(stream, factory, nil)
	p.SetSettleDelay(time.Millisecond)
	p.Start()

	start := time.Now()
	_, _, err := p.Finalize(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	select {
	case <-slow.stopped:
	default:
		t.Fatal("finalize returned before the slow recorder stopped")
	}
}

func TestFinalizeKeepsChunksFlushedDuringSettle(t *testing.T) {
	stream := newFakeStream()
	p := NewPair(stream, nil, nil)
	p.SetSettleDelay(100 * time.Millisecond)
	p.Start()
	stream.push(capture.Sample{Kind: capture.TrackAudio, Data: []byte("head-")})

	go func() {
		time.Sleep(30 * time.Millisecond)
		stream.push(capture.Sample{Kind: capture.TrackAudio, Data: []byte("tail")})
	}()

	_, audio, err := p.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("head-tail"), audio)
}

func TestFinalizeRespectsContext(t *testing.T) {
	stream := newFakeStream()
	factory := func() ChunkRecorder { return newSlowStopRecorder(time.Minute) }
	p := NewPair(stream, factory, nil)
	p.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := p.Finalize(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPairWithoutStream(t *testing.T) {
	p := NewPair(nil, nil, nil)
	p.Start()
	assert.Equal(t, StateIdle, p.State())

	video, audio, err := p.Finalize(context.Background())
	require.NoError(t, err)
	assert.Nil(t, video)
	assert.Nil(t, audio)
	assert.Equal(t, StateFinalized, p.State())
}

func TestPairResetAllowsNextQuestion(t *testing.T) {
	stream := newFakeStream()
	p := NewPair(stream, nil, nil)
	p.SetSettleDelay(time.Millisecond)

	p.Start()
	stream.push(capture.Sample{Kind: capture.TrackAudio, Data: []byte("one")})
	_, audio, err := p.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), audio)

	p.Reset()
	p.Start()
	stream.push(capture.Sample{Kind: capture.TrackAudio, Data: []byte("two")})
	_, audio, err = p.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), audio)
}
