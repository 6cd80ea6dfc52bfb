package pairing

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/pedalcast/pedalcast/pkg/signal"
)

type fakeFeed struct {
	track  *webrtc.TrackLocalStaticSample
	closed bool
}

func (f *fakeFeed) Track() webrtc.TrackLocal { return f.track }

func (f *fakeFeed) Close() error {
	f.closed = true
	return nil
}

type fakeCamera struct {
	err  error
	feed *fakeFeed
}

func (c *fakeCamera) Open(ctx context.Context, want Constraints) (Feed, error) {
	if c.err != nil {
		return nil, c.err
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "fake-camera")
	if err != nil {
		return nil, err
	}
	c.feed = &fakeFeed{track: track}
	return c.feed, nil
}

func drainStates(t *testing.T, events <-chan Event, n int) []State {
	t.Helper()
	states := make([]State, 0, n)
	for len(states) < n {
		ev := nextEvent(t, events)
		if ev.Kind != EventState {
			continue
		}
		states = append(states, ev.State)
	}
	return states
}

func TestSenderHappyPathToOffer(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(SenderConfig{
		Code:       "4821",
		Subscriber: &fakeSubscriber{ch: ch},
		Camera:     &fakeCamera{},
	})
	defer s.Destroy()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	got := drainStates(t, s.Events(), 4)
	want := []State{StateRequestingCamera, StateCameraActive, StateJoined, StateOffering}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state sequence = %v, want %v", got, want)
		}
	}

	if joins := ch.sentOfType(signal.TypeJoin); len(joins) != 1 {
		t.Errorf("sent %d join messages, want 1", len(joins))
	}
	offers := ch.sentOfType(signal.TypeOffer)
	if len(offers) != 1 {
		t.Fatalf("sent %d offers, want 1", len(offers))
	}
	if offers[0].SDP == "" {
		t.Error("offer has empty SDP")
	}
}

func TestSenderCameraPermissionDenied(t *testing.T) {
	s := NewSender(SenderConfig{
		Code:       "4821",
		Subscriber: &fakeSubscriber{ch: &fakeChannel{}},
		Camera:     &fakeCamera{err: errors.Wrap(ErrPermissionDenied, "user refused")},
	})
	defer s.Destroy()

	if err := s.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("start error = %v, want ErrPermissionDenied", err)
	}

	// requesting-camera, then failed carrying the distinct local cause.
	expectState(t, s.Events(), StateRequestingCamera)
	ev := expectState(t, s.Events(), StateFailed)
	if !errors.Is(ev.Err, ErrPermissionDenied) {
		t.Errorf("failure cause = %v, want ErrPermissionDenied", ev.Err)
	}
}

func TestSenderRejectsInvalidCode(t *testing.T) {
	for _, code := range []string{"", "12", "482a", "48215"} {
		s := NewSender(SenderConfig{
			Code:       code,
			Subscriber: &fakeSubscriber{ch: &fakeChannel{}},
			Camera:     &fakeCamera{},
		})
		if err := s.Start(context.Background()); err == nil {
			t.Errorf("start accepted code %q", code)
		}
		s.Destroy()
	}
}

func TestSenderAppliesAnswerAndFlushesCandidates(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(SenderConfig{
		Code:       "4821",
		Subscriber: &fakeSubscriber{ch: ch},
		Camera:     &fakeCamera{},
	})
	defer s.Destroy()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	offer := ch.sentOfType(signal.TypeOffer)[0]

	// Remote candidates arriving before the answer are held back.
	ch.inject(signal.Message{
		Type:      signal.TypeCandidate,
		Candidate: `{"candidate":"candidate:1 1 UDP 2122252543 127.0.0.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`,
	})
	s.mu.Lock()
	buffered := len(s.pendingRemote)
	s.mu.Unlock()
	if buffered != 1 {
		t.Fatalf("buffered %d remote candidates before answer, want 1", buffered)
	}

	ch.inject(signal.Message{Type: signal.TypeAnswer, SDP: answerFor(t, offer.SDP)})

	s.mu.Lock()
	remoteSet := s.pc.RemoteDescription() != nil
	buffered = len(s.pendingRemote)
	s.mu.Unlock()
	if !remoteSet {
		t.Error("remote description not applied after answer")
	}
	if buffered != 0 {
		t.Errorf("%d remote candidates still buffered after answer", buffered)
	}
}

func TestSenderIgnoresDuplicateAnswer(t *testing.T) {
	ch := &fakeChannel{}
	s := NewSender(SenderConfig{
		Code:       "4821",
		Subscriber: &fakeSubscriber{ch: ch},
		Camera:     &fakeCamera{},
	})
	defer s.Destroy()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	offer := ch.sentOfType(signal.TypeOffer)[0]

	answer := answerFor(t, offer.SDP)
	ch.inject(signal.Message{Type: signal.TypeAnswer, SDP: answer})

	// The same answer relayed again (or a stray one from a code collision)
	// must not fail the session.
	ch.inject(signal.Message{Type: signal.TypeAnswer, SDP: answer})

	if st := s.State(); st == StateFailed {
		t.Error("duplicate answer failed the session")
	}
}

func TestSenderDestroyIdempotent(t *testing.T) {
	ch := &fakeChannel{}
	cam := &fakeCamera{}
	s := NewSender(SenderConfig{Code: "4821", Subscriber: &fakeSubscriber{ch: ch}, Camera: cam})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.Destroy()
	s.Destroy()

	if !cam.feed.closed {
		t.Error("camera feed not released on destroy")
	}
	ch.mu.Lock()
	unsubs := ch.unsubs
	ch.mu.Unlock()
	if unsubs != 1 {
		t.Errorf("unsubscribe called %d times, want 1", unsubs)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("start after destroy succeeded")
	}
}

// answerFor negotiates a real answer to the sender's offer using a throwaway
// display-side peer connection.
func answerFor(t *testing.T, offerSDP string) string {
	t.Helper()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("peer connection: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		t.Fatalf("set offer: %v", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("create answer: %v", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	return answer.SDP
}
