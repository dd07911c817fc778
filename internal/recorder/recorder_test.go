package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mocknhire/interview-gateway/internal/capture"
)

func TestChunkRecorderConcatenatesInOrder(t *testing.T) {
	r := NewChunkRecorder()
	r.Start()
	r.WriteSample(capture.Sample{Kind: capture.TrackVideo, Data: []byte("abc")})
	r.WriteSample(capture.Sample{Kind: capture.TrackVideo, Data: []byte("def")})
	r.Stop()
	<-r.Done()

	assert.Equal(t, []byte("abcdef"), r.Bytes())
}

func TestChunkRecorderDropsSamplesOutsideCaptureWindow(t *testing.T) {
	r := NewChunkRecorder()
	r.WriteSample(capture.Sample{Data: []byte("early")})
	r.Start()
	r.WriteSample(capture.Sample{Data: []byte("kept")})

	assert.Equal(t, []byte("kept"), r.Bytes())
	r.WriteSample(capture.Sample{Data: []byte("after-finalize")})
	assert.Equal(t, []byte("kept"), r.Bytes())
}

func TestChunkRecorderKeepsLateFlushedChunks(t *testing.T) {
	r := NewChunkRecorder()
	r.Start()
	r.WriteSample(capture.Sample{Data: []byte("head-")})
	r.Stop()
	// The device layer may still flush buffered chunks after the stop
	// signal; they belong to the answer.
	r.WriteSample(capture.Sample{Data: []byte("tail")})

	assert.Equal(t, []byte("head-tail"), r.Bytes())
}

func TestChunkRecorderStopIdempotent(t *testing.T) {
	r := NewChunkRecorder()
	r.Start()
	r.Stop()
	// A second stop must not panic on the closed done channel.
	r.Stop()
	<-r.Done()
	assert.Empty(t, r.Bytes())
}

func TestChunkRecorderEmptyWithoutSamples(t *testing.T) {
	r := NewChunkRecorder()
	r.Start()
	r.Stop()
	assert.Empty(t, r.Bytes())
}
