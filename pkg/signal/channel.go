package signal

import "github.com/pkg/errors"

// ErrChannelClosed is returned by Send after a channel has been torn down or
// its transport has dropped.
var ErrChannelClosed = errors.New("signaling channel closed")

// Subscriber opens signaling channels by pairing code.
type Subscriber interface {
	Subscribe(code string) (Channel, error)
}

// Channel is one attachment to a pairing code's signaling topic. Messages
// sent are delivered to all other current subscribers of the same code;
// nothing is persisted and only within-channel order is guaranteed.
//
// Unsubscribe is idempotent. A transport drop is surfaced through the
// disconnect handler, never swallowed.
type Channel interface {
	Send(msg Message) error
	OnMessage(handler func(Message))
	OnDisconnect(handler func(err error))
	Unsubscribe() error
}
