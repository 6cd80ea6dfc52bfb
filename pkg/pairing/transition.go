package pairing

// Inputs driving the receiver state machine. Keeping the transition function
// pure makes the protocol testable without a network or media stack.
type receiverInput int

const (
	recvStart receiverInput = iota
	recvJoin
	recvOffer
	recvTrack
	recvFailure
)

// receiverNext returns the state following in, and whether the input causes
// a transition at all. Unexpected inputs (late joins, duplicate offers,
// anything after a terminal state) do not transition; callers log and drop
// them.
func receiverNext(s State, in receiverInput) (State, bool) {
	switch in {
	case recvStart:
		if s == StateIdle {
			return StateWaiting, true
		}

	case recvJoin:
		if s == StateWaiting {
			return StatePhoneJoined, true
		}

	case recvOffer:
		// The join can be lost to a subscriber race; an offer is proof
		// enough that a phone is there.
		if s == StateWaiting || s == StatePhoneJoined {
			return StateConnecting, true
		}

	case recvTrack:
		if s == StateConnecting {
			return StateConnected, true
		}
		// A fresh negotiation on a live session replaces the stream.
		if s == StateConnected {
			return StateConnected, true
		}

	case recvFailure:
		if !s.Terminal() {
			return StateFailed, true
		}
	}

	return s, false
}

// Inputs driving the sender state machine.
type senderInput int

const (
	sendStart senderInput = iota
	sendCameraOK
	sendJoined
	sendOffered
	sendConnected
	sendFailure
)

func senderNext(s State, in senderInput) (State, bool) {
	switch in {
	case sendStart:
		if s == StateIdle {
			return StateRequestingCamera, true
		}

	case sendCameraOK:
		if s == StateRequestingCamera {
			return StateCameraActive, true
		}

	case sendJoined:
		if s == StateCameraActive {
			return StateJoined, true
		}

	case sendOffered:
		if s == StateJoined {
			return StateOffering, true
		}

	case sendConnected:
		if s == StateOffering {
			return StateConnected, true
		}

	case sendFailure:
		if !s.Terminal() {
			return StateFailed, true
		}
	}

	return s, false
}
