package pairing

import "testing"

func TestReceiverNext(t *testing.T) {
	tests := []struct {
		name  string
		state State
		in    receiverInput
		want  State
		ok    bool
	}{
		{"start from idle", StateIdle, recvStart, StateWaiting, true},
		{"start twice", StateWaiting, recvStart, StateWaiting, false},
		{"join while waiting", StateWaiting, recvJoin, StatePhoneJoined, true},
		{"second join ignored", StatePhoneJoined, recvJoin, StatePhoneJoined, false},
		{"join after connect ignored", StateConnected, recvJoin, StateConnected, false},
		{"offer after join", StatePhoneJoined, recvOffer, StateConnecting, true},
		{"offer without join", StateWaiting, recvOffer, StateConnecting, true},
		{"duplicate offer ignored", StateConnecting, recvOffer, StateConnecting, false},
		{"track completes negotiation", StateConnecting, recvTrack, StateConnected, true},
		{"renegotiated track", StateConnected, recvTrack, StateConnected, true},
		{"early track ignored", StateWaiting, recvTrack, StateWaiting, false},
		{"failure while waiting", StateWaiting, recvFailure, StateFailed, true},
		{"failure while connecting", StateConnecting, recvFailure, StateFailed, true},
		{"failure after connect ignored", StateConnected, recvFailure, StateConnected, false},
		{"failure after failure ignored", StateFailed, recvFailure, StateFailed, false},
		{"nothing leaves failed", StateFailed, recvOffer, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := receiverNext(tt.state, tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("receiverNext(%s, %d) = (%s, %v), want (%s, %v)",
					tt.state, tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSenderNext(t *testing.T) {
	tests := []struct {
		name  string
		state State
		in    senderInput
		want  State
		ok    bool
	}{
		{"start from idle", StateIdle, sendStart, StateRequestingCamera, true},
		{"camera granted", StateRequestingCamera, sendCameraOK, StateCameraActive, true},
		{"joined", StateCameraActive, sendJoined, StateJoined, true},
		{"offered", StateJoined, sendOffered, StateOffering, true},
		{"connected", StateOffering, sendConnected, StateConnected, true},
		{"connected out of order ignored", StateJoined, sendConnected, StateJoined, false},
		{"failure while requesting camera", StateRequestingCamera, sendFailure, StateFailed, true},
		{"failure while offering", StateOffering, sendFailure, StateFailed, true},
		{"failure after connect ignored", StateConnected, sendFailure, StateConnected, false},
		{"nothing leaves failed", StateFailed, sendJoined, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := senderNext(tt.state, tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("senderNext(%s, %d) = (%s, %v), want (%s, %v)",
					tt.state, tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateWaiting, StatePhoneJoined, StateConnecting, StateRequestingCamera, StateCameraActive, StateJoined, StateOffering} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
	for _, s := range []State{StateConnected, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
}
