// Package recorder accumulates encoded media chunks for one interview question
// and coordinates the paired stop of the combined and audio-only recorders.
package recorder

import (
	"sync"

	"github.com/mocknhire/interview-gateway/internal/capture"
)

// State is the per-question recorder lifecycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateFinalized
)

// ChunkRecorder accumulates binary chunks from a live stream. Stop is
// asynchronous: completion is signaled on Done, after which Bytes is stable.
type ChunkRecorder interface {
	capture.Sink
	Start()
	Stop()
	Done() <-chan struct{}
	Bytes() []byte
}

// chunkRecorder collects samples in memory. Nothing is persisted until the
// question is finalized.
type chunkRecorder struct {
	mu     sync.Mutex
	state  State
	chunks [][]byte
	size   int
	done   chan struct{}
}

// NewChunkRecorder creates an idle recorder.
func NewChunkRecorder() ChunkRecorder {
	return &chunkRecorder{done: make(chan struct{})}
}

func (r *chunkRecorder) Start() {
	r.mu.Lock()
	if r.state == StateIdle {
		r.state = StateRecording
	}
	r.mu.Unlock()
}

// WriteSample appends one chunk. Called from the stream's read goroutines.
// Samples are accepted while recording and while stopping, so chunks the
// device layer is still flushing during the settle window are kept; samples
// before Start or after finalization are dropped.
func (r *chunkRecorder) WriteSample(s capture.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording && r.state != StateStopping {
		return
	}
	r.chunks = append(r.chunks, s.Data)
	r.size += len(s.Data)
}

// Stop transitions to stopping and signals completion on Done. Late-flushed
// chunks keep accumulating until Bytes finalizes.
func (r *chunkRecorder) Stop() {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	r.state = StateStopping
	r.mu.Unlock()
	close(r.done)
}

func (r *chunkRecorder) Done() <-chan struct{} { return r.done }

// Bytes returns the concatenated chunks. Only meaningful after Done fires and
// the settle delay has elapsed.
func (r *chunkRecorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateFinalized
	out := make([]byte, 0, r.size)
	for _, c := range r.chunks {
		out = append(out, c...)
	}
	return out
}
