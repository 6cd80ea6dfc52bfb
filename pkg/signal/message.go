package signal

// MessageType identifies a signaling message.
type MessageType string

const (
	TypeJoin      MessageType = "join"
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "ice-candidate"
	TypeError     MessageType = "error"
)

// Message is the wire format exchanged over a pairing channel. It carries
// connection setup only; media never passes through signaling.
type Message struct {
	Type      MessageType `json:"type"`
	Code      string      `json:"code,omitempty"`      // pairing code
	SDP       string      `json:"sdp,omitempty"`       // offer/answer session description
	Candidate string      `json:"candidate,omitempty"` // ICE candidate JSON
	Error     string      `json:"error,omitempty"`
	PeerID    string      `json:"peerId,omitempty"` // sender identity, set by the server
}
