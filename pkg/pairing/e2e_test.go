package pairing

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/pedalcast/pedalcast/pkg/signal"
)

// pumpCamera writes synthetic VP8 samples so the connected peer actually
// receives a track, not just a negotiated transceiver.
type pumpCamera struct {
	feed *pumpFeed
}

type pumpFeed struct {
	track  *webrtc.TrackLocalStaticSample
	cancel context.CancelFunc
}

func (f *pumpFeed) Track() webrtc.TrackLocal { return f.track }

func (f *pumpFeed) Close() error {
	f.cancel()
	return nil
}

func (c *pumpCamera) Open(ctx context.Context, want Constraints) (Feed, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "pump-camera")
	if err != nil {
		return nil, err
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	c.feed = &pumpFeed{track: track, cancel: cancel}

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		// Keyframe-ish VP8 payload; the receiver only needs RTP to flow.
		frame := []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a}
		for {
			select {
			case <-pumpCtx.Done():
				return
			case <-ticker.C:
				if err := track.WriteSample(media.Sample{Data: frame, Duration: 50 * time.Millisecond}); err != nil {
					return
				}
			}
		}
	}()
	return c.feed, nil
}

// TestPairingEndToEnd wires a receiver and a sender through an in-process
// signaling hub and drives a full ICE handshake over loopback.
func TestPairingEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping loopback negotiation in short mode")
	}

	hub := signal.NewLocalHub()
	const code = "4821"

	recv := NewReceiver(ReceiverConfig{
		Code:        code,
		Subscriber:  hub,
		JoinTimeout: 30 * time.Second,
	})
	defer recv.Destroy()
	if err := recv.Start(); err != nil {
		t.Fatalf("receiver start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewSender(SenderConfig{
		Code:       code,
		Subscriber: hub,
		Camera:     &pumpCamera{},
	})
	defer sender.Destroy()
	if err := sender.Start(ctx); err != nil {
		t.Fatalf("sender start: %v", err)
	}

	wantStates := []State{StateWaiting, StatePhoneJoined, StateConnecting, StateConnected}
	var gotStates []State
	var streamEvents int
	var track *webrtc.TrackRemote

	deadline := time.After(20 * time.Second)
	for len(gotStates) < len(wantStates) || streamEvents == 0 {
		select {
		case ev, ok := <-recv.Events():
			if !ok {
				t.Fatalf("receiver events closed early; states %v", gotStates)
			}
			switch ev.Kind {
			case EventState:
				if ev.State == StateFailed {
					t.Fatalf("receiver failed: %v (after %v)", ev.Err, gotStates)
				}
				gotStates = append(gotStates, ev.State)
			case EventStream:
				streamEvents++
				track = ev.Track
			}
		case <-deadline:
			t.Fatalf("timed out; states %v, %d stream events", gotStates, streamEvents)
		}
	}

	for i := range wantStates {
		if gotStates[i] != wantStates[i] {
			t.Fatalf("receiver states = %v, want %v", gotStates, wantStates)
		}
	}
	if streamEvents != 1 {
		t.Errorf("got %d stream events, want exactly 1", streamEvents)
	}
	if track == nil || track.Kind() != webrtc.RTPCodecTypeVideo {
		t.Errorf("stream event did not carry a video track")
	}

	if sender.State() != StateConnected {
		// The sender's connected transition can trail the receiver's by a
		// beat; give it a moment before judging.
		waitForState(t, sender, StateConnected, 5*time.Second)
	}
}

func waitForState(t *testing.T, s *Sender, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("sender state = %s, want %s", s.State(), want)
}
