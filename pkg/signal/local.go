package signal

import (
	"sync"

	"github.com/pedalcast/pedalcast/pkg/log"
)

// LocalHub is an in-process Subscriber used when signaling runs embedded in
// the display process, and by tests that need a channel without a network.
type LocalHub struct {
	mu     sync.RWMutex
	topics map[string]map[*LocalChannel]bool
}

// NewLocalHub creates an empty hub.
func NewLocalHub() *LocalHub {
	return &LocalHub{topics: make(map[string]map[*LocalChannel]bool)}
}

// Subscribe attaches a new channel to the code's topic. The topic exists only
// while at least one channel is attached.
func (h *LocalHub) Subscribe(code string) (Channel, error) {
	code = NormalizePairCode(code)

	h.mu.Lock()
	defer h.mu.Unlock()

	topic, ok := h.topics[code]
	if !ok {
		topic = make(map[*LocalChannel]bool)
		h.topics[code] = topic
	}

	ch := &LocalChannel{
		hub:   h,
		code:  code,
		inbox: make(chan Message, 64),
		done:  make(chan struct{}),
	}
	topic[ch] = true

	go ch.dispatch()

	return ch, nil
}

func (h *LocalHub) deliver(from *LocalChannel, msg Message) {
	h.mu.RLock()
	subs := make([]*LocalChannel, 0, len(h.topics[from.code]))
	for ch := range h.topics[from.code] {
		if ch != from {
			subs = append(subs, ch)
		}
	}
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch.inbox <- msg:
		default:
			log.Warnf("local channel %s: inbox full, dropping %s", TopicForCode(from.code), msg.Type)
		}
	}
}

func (h *LocalHub) remove(ch *LocalChannel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic, ok := h.topics[ch.code]
	if !ok {
		return
	}
	delete(topic, ch)
	if len(topic) == 0 {
		delete(h.topics, ch.code)
	}
}

// LocalChannel is a hub attachment. Each channel dispatches its inbox from a
// single goroutine, so handlers observe within-channel delivery order and
// may call Send without re-entrancy hazards.
type LocalChannel struct {
	hub   *LocalHub
	code  string
	inbox chan Message
	done  chan struct{}

	mu        sync.Mutex
	onMessage func(Message)
	closed    bool
}

func (c *LocalChannel) Send(msg Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrChannelClosed
	}

	msg.Code = c.code
	c.hub.deliver(c, msg)
	return nil
}

func (c *LocalChannel) OnMessage(handler func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

// OnDisconnect is a no-op for local channels; an in-process hub has no
// transport to drop.
func (c *LocalChannel) OnDisconnect(handler func(error)) {}

func (c *LocalChannel) Unsubscribe() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.hub.remove(c)
	return nil
}

func (c *LocalChannel) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.inbox:
			c.mu.Lock()
			handler := c.onMessage
			c.mu.Unlock()

			if handler != nil {
				handler(msg)
			}
		}
	}
}
