package pairing

import (
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
)

// State names a step of a pairing session's lifecycle. Receiver and sender
// share the type but walk different paths through it; transitions are
// monotonic toward connected or failed and only Destroy resets a session.
type State string

const (
	StateIdle        State = "idle"
	StateWaiting     State = "waiting"
	StatePhoneJoined State = "phone-joined"
	StateConnecting  State = "connecting"
	StateConnected   State = "connected"
	StateFailed      State = "failed"

	// Sender-side states.
	StateRequestingCamera State = "requesting-camera"
	StateCameraActive     State = "camera-active"
	StateJoined           State = "joined"
	StateOffering         State = "offering"
)

// Terminal reports whether no further progress is possible without a new
// session.
func (s State) Terminal() bool {
	return s == StateConnected || s == StateFailed
}

// Session failure causes, surfaced on failed state events.
var (
	ErrSignalingUnavailable = errors.New("signaling channel unavailable")
	ErrNoJoinTimeout        = errors.New("no device joined before the timeout")
	ErrNegotiationFailed    = errors.New("peer negotiation failed")
	ErrPermissionDenied     = errors.New("camera permission denied")
)

// EventKind discriminates session events.
type EventKind int

const (
	// EventState reports a state transition; Err is set when the new state
	// is StateFailed.
	EventState EventKind = iota
	// EventStream reports remote media arrival; Track is set. Emitted at
	// most once per successful negotiation.
	EventStream
)

// Event is one entry in a session's ordered notification stream. A single
// stream (rather than separate status and stream callbacks) removes any
// ambiguity about ordering between negotiation completion and track arrival.
type Event struct {
	Kind  EventKind
	State State
	Track *webrtc.TrackRemote
	Err   error
}
