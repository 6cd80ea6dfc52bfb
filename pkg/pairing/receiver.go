package pairing

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/pedalcast/pedalcast/pkg/log"
	"github.com/pedalcast/pedalcast/pkg/signal"
)

// How long a "disconnected" ICE state may persist before the session is
// declared failed. Short blips recover on their own.
const disconnectGrace = 10 * time.Second

// ReceiverConfig configures a display-side pairing session.
type ReceiverConfig struct {
	// Code is the pairing code to listen on. Generated when empty.
	Code string

	// Subscriber opens the signaling channel for the code.
	Subscriber signal.Subscriber

	// STUNServers overrides DefaultSTUNServers when non-empty.
	STUNServers []string

	// JoinTimeout fails the session if no phone joins in time. Zero
	// disables the timeout.
	JoinTimeout time.Duration
}

// Receiver owns the display side of a pairing: it waits on a code's
// signaling channel, answers the phone's offer and surfaces the remote
// camera stream. At most one receiver owns a code's peer connection at a
// time.
type Receiver struct {
	cfg  ReceiverConfig
	code string

	mu              sync.Mutex
	state           State
	ch              signal.Channel
	pc              *webrtc.PeerConnection
	joinTimer       *time.Timer
	disconnectTimer *time.Timer
	lastTrack       *webrtc.TrackRemote
	destroyed       bool

	events chan Event
}

// NewReceiver creates a receiver in the idle state. Call Start to begin
// waiting for a phone.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	code := signal.NormalizePairCode(cfg.Code)
	if code == "" {
		code = signal.GeneratePairCode()
	}

	return &Receiver{
		cfg:    cfg,
		code:   code,
		state:  StateIdle,
		events: make(chan Event, 16),
	}
}

// Code returns the pairing code this receiver listens on.
func (r *Receiver) Code() string {
	return r.code
}

// State returns the current session state.
func (r *Receiver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Events returns the session's ordered event stream.
func (r *Receiver) Events() <-chan Event {
	return r.events
}

// Start subscribes to the code's signaling channel and moves the session to
// waiting. A subscribe failure is terminal; recover by destroying the
// session and generating a fresh code.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return errors.New("receiver destroyed")
	}
	if r.state != StateIdle {
		return errors.Errorf("receiver already started (state %s)", r.state)
	}

	ch, err := r.cfg.Subscriber.Subscribe(r.code)
	if err != nil {
		r.failLocked(errors.Wrap(ErrSignalingUnavailable, err.Error()))
		return err
	}
	r.ch = ch

	ch.OnMessage(r.handleMessage)
	ch.OnDisconnect(func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		log.Errorf("pairing %s: signaling dropped: %v", r.code, err)
		r.failLocked(ErrSignalingUnavailable)
	})

	if r.cfg.JoinTimeout > 0 {
		r.joinTimer = time.AfterFunc(r.cfg.JoinTimeout, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.state == StateWaiting {
				r.failLocked(ErrNoJoinTimeout)
			}
		})
	}

	r.transitionLocked(recvStart)
	return nil
}

// Destroy tears the session down: peer connection closed, channel
// unsubscribed, timers cancelled. Idempotent and callable from any state,
// including before Start.
func (r *Receiver) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return
	}
	r.destroyed = true
	r.state = StateIdle

	if r.joinTimer != nil {
		r.joinTimer.Stop()
		r.joinTimer = nil
	}
	if r.disconnectTimer != nil {
		r.disconnectTimer.Stop()
		r.disconnectTimer = nil
	}
	if r.pc != nil {
		if err := r.pc.Close(); err != nil {
			log.Errorf("pairing %s: close peer connection: %v", r.code, err)
		}
		r.pc = nil
	}
	if r.ch != nil {
		if err := r.ch.Unsubscribe(); err != nil {
			log.Errorf("pairing %s: unsubscribe: %v", r.code, err)
		}
		r.ch = nil
	}

	close(r.events)
}

func (r *Receiver) handleMessage(msg signal.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed || r.state.Terminal() {
		// A receiver outliving its session must not choke on late
		// messages.
		log.Debugf("pairing %s: dropping late %s", r.code, msg.Type)
		return
	}

	switch msg.Type {
	case signal.TypeJoin:
		if _, ok := r.transitionLocked(recvJoin); !ok {
			log.Debugf("pairing %s: unexpected join in state %s", r.code, r.state)
		}

	case signal.TypeOffer:
		// A stray or duplicate offer (code collisions are accepted, not
		// prevented) must not tear down a negotiation in progress.
		if _, ok := receiverNext(r.state, recvOffer); !ok {
			log.Debugf("pairing %s: unexpected offer in state %s, ignoring", r.code, r.state)
			return
		}
		if err := r.handleOfferLocked(msg.SDP); err != nil {
			log.Errorf("pairing %s: offer: %v", r.code, err)
			r.failLocked(ErrNegotiationFailed)
		}

	case signal.TypeCandidate:
		if r.pc == nil {
			log.Debugf("pairing %s: candidate before offer, ignoring", r.code)
			return
		}
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(msg.Candidate), &cand); err != nil {
			log.Warnf("pairing %s: malformed candidate: %v", r.code, err)
			return
		}
		if err := r.pc.AddICECandidate(cand); err != nil {
			log.Warnf("pairing %s: add candidate: %v", r.code, err)
		}

	default:
		log.Debugf("pairing %s: ignoring %s message", r.code, msg.Type)
	}
}

// handleOfferLocked builds the peer connection, answers the offer and begins
// trickling local candidates.
func (r *Receiver) handleOfferLocked(sdp string) error {
	if r.joinTimer != nil {
		r.joinTimer.Stop()
		r.joinTimer = nil
	}

	pc, err := webrtc.NewPeerConnection(ICEConfiguration(r.cfg.STUNServers))
	if err != nil {
		return errors.Wrap(err, "create peer connection")
	}
	r.pc = pc

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Errorf("pairing %s: marshal candidate: %v", r.code, err)
			return
		}
		r.sendCandidate(string(payload))
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		r.onTrack(track)
	})

	pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
		r.onICEStateChange(st)
	})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return errors.Wrap(err, "set remote description")
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return errors.Wrap(err, "create answer")
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return errors.Wrap(err, "set local description")
	}

	if err := r.ch.Send(signal.Message{Type: signal.TypeAnswer, SDP: answer.SDP}); err != nil {
		return errors.Wrap(err, "send answer")
	}

	r.transitionLocked(recvOffer)
	return nil
}

func (r *Receiver) sendCandidate(candidate string) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	if ch == nil {
		return
	}
	if err := ch.Send(signal.Message{Type: signal.TypeCandidate, Candidate: candidate}); err != nil {
		log.Warnf("pairing %s: send candidate: %v", r.code, err)
	}
}

func (r *Receiver) onTrack(track *webrtc.TrackRemote) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return
	}

	// The stream event fires exactly once per negotiation; only a fresh
	// negotiation producing a new track object re-fires it.
	if track == r.lastTrack {
		return
	}

	if _, ok := r.transitionLocked(recvTrack); !ok {
		return
	}
	r.lastTrack = track
	r.emitLocked(Event{Kind: EventStream, State: r.state, Track: track})
}

func (r *Receiver) onICEStateChange(st webrtc.ICEConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return
	}
	log.Debugf("pairing %s: ice state %s", r.code, st)

	switch st {
	case webrtc.ICEConnectionStateFailed:
		r.failLocked(ErrNegotiationFailed)

	case webrtc.ICEConnectionStateDisconnected:
		if r.disconnectTimer == nil {
			r.disconnectTimer = time.AfterFunc(disconnectGrace, func() {
				r.mu.Lock()
				defer r.mu.Unlock()
				r.failLocked(ErrNegotiationFailed)
			})
		}

	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		if r.disconnectTimer != nil {
			r.disconnectTimer.Stop()
			r.disconnectTimer = nil
		}
	}
}

func (r *Receiver) transitionLocked(in receiverInput) (State, bool) {
	next, ok := receiverNext(r.state, in)
	if !ok {
		return r.state, false
	}
	r.state = next
	r.emitLocked(Event{Kind: EventState, State: next})
	return next, true
}

func (r *Receiver) failLocked(cause error) {
	next, ok := receiverNext(r.state, recvFailure)
	if !ok {
		return
	}
	r.state = next
	r.emitLocked(Event{Kind: EventState, State: next, Err: cause})
}

func (r *Receiver) emitLocked(ev Event) {
	if r.destroyed {
		return
	}
	select {
	case r.events <- ev:
	default:
		log.Warnf("pairing %s: event buffer full, dropping %v", r.code, ev.Kind)
	}
}
