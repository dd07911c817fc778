package capture

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// RTP buffer size (MTU-friendly). Pooled to avoid per-packet allocs.
const rtpBufferSize = 1500

var rtpBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, rtpBufferSize)
		return &b
	},
}

// WebRTCStream receives the candidate's camera/microphone over a WebRTC peer
// connection and fans the RTP payloads out to attached sinks. It implements
// Stream; the signaling (offer/answer/ICE) is driven by the gateway's
// WebSocket control channel.
type WebRTCStream struct {
	*fanout
	cfg     webrtc.Configuration
	log     *zap.Logger
	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	stopped bool
}

// NewWebRTCStream creates an unconnected stream with the given ICE servers.
func NewWebRTCStream(iceServers []webrtc.ICEServer, log *zap.Logger) *WebRTCStream {
	cfg := webrtc.Configuration{ICEServers: iceServers}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WebRTCStream{fanout: newFanout(), cfg: cfg, log: log}
}

// HandleOffer answers the candidate's publish offer. ICE candidates and the
// answer are delivered through sendToClient on the control channel.
func (w *WebRTCStream) HandleOffer(sdp webrtc.SessionDescription, sendToClient func(event string, payload interface{})) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	if w.pc != nil {
		old := w.pc
		w.pc = nil
		w.mu.Unlock()
		_ = old.Close()
		w.mu.Lock()
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		w.mu.Unlock()
		return err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine))
	pc, err := api.NewPeerConnection(w.cfg)
	if err != nil {
		w.mu.Unlock()
		return err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		b, _ := json.Marshal(c.ToJSON())
		sendToClient("capture_ice", map[string]interface{}{"candidate": json.RawMessage(b)})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		kind := TrackVideo
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			kind = TrackAudio
		}
		w.log.Debug("capture track connected", zap.String("kind", track.Kind().String()))
		go w.readTrack(track, kind)
	})

	if err := pc.SetRemoteDescription(sdp); err != nil {
		_ = pc.Close()
		w.mu.Unlock()
		return err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		w.mu.Unlock()
		return err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		w.mu.Unlock()
		return err
	}
	w.pc = pc
	w.mu.Unlock()

	sendToClient("capture_answer", map[string]interface{}{
		"type": answer.Type.String(),
		"sdp":  answer.SDP,
	})
	return nil
}

// AddICECandidate adds a remote ICE candidate to the capture peer connection.
func (w *WebRTCStream) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	w.mu.Lock()
	pc := w.pc
	w.mu.Unlock()
	if pc == nil {
		return nil
	}
	return pc.AddICECandidate(candidate)
}

// readTrack pumps RTP payloads from one remote track into the fanout until the
// track closes.
func (w *WebRTCStream) readTrack(track *webrtc.TrackRemote, kind TrackKind) {
	for {
		ptr := rtpBufferPool.Get().(*[]byte)
		buf := *ptr
		n, _, err := track.Read(buf)
		if err != nil {
			rtpBufferPool.Put(ptr)
			return
		}
		w.dispatch(Sample{Kind: kind, Data: buf[:n]})
		rtpBufferPool.Put(ptr)
	}
}

// Stop closes the peer connection and releases the device feed. Idempotent;
// it must run on every session exit path.
func (w *WebRTCStream) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	pc := w.pc
	w.pc = nil
	w.mu.Unlock()
	if pc != nil {
		_ = pc.Close()
	}
}
