package pairing

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/pedalcast/pedalcast/pkg/log"
	"github.com/pedalcast/pedalcast/pkg/signal"
)

// SenderConfig configures a camera-side pairing session.
type SenderConfig struct {
	// Code is the pairing code shown on the display. Required.
	Code string

	// Subscriber opens the signaling channel for the code.
	Subscriber signal.Subscriber

	// Camera acquires the local video source.
	Camera Camera

	// Constraints for the camera request. Zero value means
	// DefaultConstraints.
	Constraints Constraints

	// STUNServers overrides DefaultSTUNServers when non-empty. Both sides
	// must use the same ICE server set.
	STUNServers []string
}

// Sender owns the phone side of a pairing: it acquires the camera, announces
// itself on the display's code, publishes an offer and completes the
// candidate exchange.
type Sender struct {
	cfg  SenderConfig
	code string

	mu        sync.Mutex
	state     State
	ch        signal.Channel
	pc        *webrtc.PeerConnection
	feed      Feed
	destroyed bool

	// Local candidates gathered before the answer arrives are held back
	// until the remote description is in place.
	pendingLocal []webrtc.ICECandidateInit
	// Remote candidates can likewise race the answer.
	pendingRemote []webrtc.ICECandidateInit

	events chan Event
}

// NewSender creates a sender in the idle state.
func NewSender(cfg SenderConfig) *Sender {
	if cfg.Constraints == (Constraints{}) {
		cfg.Constraints = DefaultConstraints()
	}
	return &Sender{
		cfg:    cfg,
		code:   signal.NormalizePairCode(cfg.Code),
		state:  StateIdle,
		events: make(chan Event, 16),
	}
}

// State returns the current session state.
func (s *Sender) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the session's ordered event stream.
func (s *Sender) Events() <-chan Event {
	return s.events
}

// Start runs the pairing protocol up to the published offer: camera, channel
// subscribe, join, peer connection, offer. The answer and candidate exchange
// complete asynchronously; watch Events for connected or failed.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return errors.New("sender destroyed")
	}
	if !signal.ValidatePairCode(s.code) {
		return errors.Errorf("invalid pairing code %q", s.code)
	}
	if s.state != StateIdle {
		return errors.Errorf("sender already started (state %s)", s.state)
	}

	s.transitionLocked(sendStart)

	feed, err := s.cfg.Camera.Open(ctx, s.cfg.Constraints)
	if err != nil {
		// Permission refusal is reported locally and distinctly; the
		// display cannot tell it apart from nobody joining.
		if errors.Is(err, ErrPermissionDenied) {
			s.failLocked(ErrPermissionDenied)
		} else {
			s.failLocked(err)
		}
		return err
	}
	s.feed = feed
	s.transitionLocked(sendCameraOK)

	ch, err := s.cfg.Subscriber.Subscribe(s.code)
	if err != nil {
		s.failLocked(errors.Wrap(ErrSignalingUnavailable, err.Error()))
		return err
	}
	s.ch = ch

	ch.OnMessage(s.handleMessage)
	ch.OnDisconnect(func(err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		log.Errorf("pairing %s: signaling dropped: %v", s.code, err)
		s.failLocked(ErrSignalingUnavailable)
	})

	if err := ch.Send(signal.Message{Type: signal.TypeJoin}); err != nil {
		s.failLocked(errors.Wrap(ErrSignalingUnavailable, err.Error()))
		return err
	}
	s.transitionLocked(sendJoined)

	if err := s.offerLocked(); err != nil {
		s.failLocked(ErrNegotiationFailed)
		return err
	}
	s.transitionLocked(sendOffered)
	return nil
}

// Destroy tears the session down. Idempotent.
func (s *Sender) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.destroyed = true
	s.state = StateIdle

	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			log.Errorf("pairing %s: close peer connection: %v", s.code, err)
		}
		s.pc = nil
	}
	if s.feed != nil {
		s.feed.Close()
		s.feed = nil
	}
	if s.ch != nil {
		if err := s.ch.Unsubscribe(); err != nil {
			log.Errorf("pairing %s: unsubscribe: %v", s.code, err)
		}
		s.ch = nil
	}

	close(s.events)
}

func (s *Sender) offerLocked() error {
	pc, err := webrtc.NewPeerConnection(ICEConfiguration(s.cfg.STUNServers))
	if err != nil {
		return errors.Wrap(err, "create peer connection")
	}
	s.pc = pc

	if _, err := pc.AddTrack(s.feed.Track()); err != nil {
		return errors.Wrap(err, "add camera track")
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		s.localCandidate(c.ToJSON())
	})

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.onConnStateChange(st)
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return errors.Wrap(err, "create offer")
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return errors.Wrap(err, "set local description")
	}

	if err := s.ch.Send(signal.Message{Type: signal.TypeOffer, SDP: offer.SDP}); err != nil {
		return errors.Wrap(err, "send offer")
	}
	return nil
}

func (s *Sender) handleMessage(msg signal.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed || s.state == StateFailed {
		log.Debugf("pairing %s: dropping late %s", s.code, msg.Type)
		return
	}

	switch msg.Type {
	case signal.TypeAnswer:
		if s.pc == nil {
			log.Debugf("pairing %s: answer before offer, ignoring", s.code)
			return
		}
		if s.pc.RemoteDescription() != nil {
			// An answer is applied once; a stray second one is noise, not
			// a reason to fail a live negotiation.
			log.Debugf("pairing %s: duplicate answer, ignoring", s.code)
			return
		}
		answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}
		if err := s.pc.SetRemoteDescription(answer); err != nil {
			log.Errorf("pairing %s: set answer: %v", s.code, err)
			s.failLocked(ErrNegotiationFailed)
			return
		}
		s.flushCandidatesLocked()

	case signal.TypeCandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(msg.Candidate), &cand); err != nil {
			log.Warnf("pairing %s: malformed candidate: %v", s.code, err)
			return
		}
		if s.pc == nil || s.pc.RemoteDescription() == nil {
			s.pendingRemote = append(s.pendingRemote, cand)
			return
		}
		if err := s.pc.AddICECandidate(cand); err != nil {
			log.Warnf("pairing %s: add candidate: %v", s.code, err)
		}

	default:
		// Our own join echoes back from nobody; anything else is noise.
		log.Debugf("pairing %s: ignoring %s message", s.code, msg.Type)
	}
}

func (s *Sender) localCandidate(cand webrtc.ICECandidateInit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed || s.ch == nil {
		return
	}
	if s.pc == nil || s.pc.RemoteDescription() == nil {
		s.pendingLocal = append(s.pendingLocal, cand)
		return
	}
	s.sendCandidateLocked(cand)
}

// flushCandidatesLocked releases candidates buffered on both sides of the
// answer race.
func (s *Sender) flushCandidatesLocked() {
	for _, cand := range s.pendingLocal {
		s.sendCandidateLocked(cand)
	}
	s.pendingLocal = nil

	for _, cand := range s.pendingRemote {
		if err := s.pc.AddICECandidate(cand); err != nil {
			log.Warnf("pairing %s: add buffered candidate: %v", s.code, err)
		}
	}
	s.pendingRemote = nil
}

func (s *Sender) sendCandidateLocked(cand webrtc.ICECandidateInit) {
	payload, err := json.Marshal(cand)
	if err != nil {
		log.Errorf("pairing %s: marshal candidate: %v", s.code, err)
		return
	}
	if err := s.ch.Send(signal.Message{Type: signal.TypeCandidate, Candidate: string(payload)}); err != nil {
		log.Warnf("pairing %s: send candidate: %v", s.code, err)
	}
}

func (s *Sender) onConnStateChange(st webrtc.PeerConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	log.Debugf("pairing %s: connection state %s", s.code, st)

	switch st {
	case webrtc.PeerConnectionStateConnected:
		s.transitionLocked(sendConnected)

	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
		s.failLocked(ErrNegotiationFailed)
	}
}

func (s *Sender) transitionLocked(in senderInput) (State, bool) {
	next, ok := senderNext(s.state, in)
	if !ok {
		return s.state, false
	}
	s.state = next
	s.emitLocked(Event{Kind: EventState, State: next})
	return next, true
}

func (s *Sender) failLocked(cause error) {
	next, ok := senderNext(s.state, sendFailure)
	if !ok {
		return
	}
	s.state = next
	s.emitLocked(Event{Kind: EventState, State: next, Err: cause})
}

func (s *Sender) emitLocked(ev Event) {
	if s.destroyed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Warnf("pairing %s: event buffer full, dropping %v", s.code, ev.Kind)
	}
}
