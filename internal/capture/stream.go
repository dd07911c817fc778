// Package capture acquires and fans out the candidate's live camera/microphone
// stream. The stream is acquired exactly once per session and must be stopped
// on every exit path so device resources are released.
package capture

import "sync"

// TrackKind identifies a media track type.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

// Sample is one encoded media chunk read from a live track. Data is owned by
// the receiver.
type Sample struct {
	Kind TrackKind
	Data []byte
}

// Sink receives live samples. WriteSample is called from the stream's read
// goroutines and must not block.
type Sink interface {
	WriteSample(s Sample)
}

// Stream is a live audio+video device source. A combined recorder attaches
// for both track kinds; the audio-only recorder attaches for TrackAudio only,
// giving it a derived view over the same underlying device.
type Stream interface {
	// Attach registers a sink for the given track kinds. Re-attaching with the
	// same id replaces the previous registration.
	Attach(id string, sink Sink, kinds ...TrackKind)
	// Detach removes a sink registration. Unknown ids are ignored.
	Detach(id string)

	// SetVideoEnabled and SetAudioEnabled gate delivery per track kind without
	// tearing the stream down, mirroring device-track enable toggles.
	SetVideoEnabled(enabled bool)
	SetAudioEnabled(enabled bool)
	VideoEnabled() bool
	AudioEnabled() bool

	// Stop releases the underlying device. Idempotent.
	Stop()
}

// fanout is the shared Attach/Detach/toggle plumbing used by stream
// implementations. Samples for a disabled track kind are dropped at the gate.
type fanout struct {
	mu           sync.RWMutex
	sinks        map[string]sinkEntry
	videoEnabled bool
	audioEnabled bool
}

type sinkEntry struct {
	sink  Sink
	kinds map[TrackKind]bool
}

func newFanout() *fanout {
	return &fanout{
		sinks:        make(map[string]sinkEntry),
		videoEnabled: true,
		audioEnabled: true,
	}
}

func (f *fanout) Attach(id string, sink Sink, kinds ...TrackKind) {
	set := make(map[TrackKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	f.mu.Lock()
	f.sinks[id] = sinkEntry{sink: sink, kinds: set}
	f.mu.Unlock()
}

func (f *fanout) Detach(id string) {
	f.mu.Lock()
	delete(f.sinks, id)
	f.mu.Unlock()
}

func (f *fanout) SetVideoEnabled(enabled bool) {
	f.mu.Lock()
	f.videoEnabled = enabled
	f.mu.Unlock()
}

func (f *fanout) SetAudioEnabled(enabled bool) {
	f.mu.Lock()
	f.audioEnabled = enabled
	f.mu.Unlock()
}

func (f *fanout) VideoEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.videoEnabled
}

func (f *fanout) AudioEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.audioEnabled
}

// dispatch delivers a sample to every sink attached for its kind. Each sink
// gets its own copy so async consumers can hold the data.
func (f *fanout) dispatch(s Sample) {
	f.mu.RLock()
	if (s.Kind == TrackVideo && !f.videoEnabled) || (s.Kind == TrackAudio && !f.audioEnabled) {
		f.mu.RUnlock()
		return
	}
	targets := make([]Sink, 0, len(f.sinks))
	for _, e := range f.sinks {
		if e.kinds[s.Kind] {
			targets = append(targets, e.sink)
		}
	}
	f.mu.RUnlock()

	for _, sink := range targets {
		data := make([]byte, len(s.Data))
		copy(data, s.Data)
		sink.WriteSample(Sample{Kind: s.Kind, Data: data})
	}
}
