package signal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/pedalcast/pedalcast/pkg/log"
)

// WebsocketSubscriber opens channels against a remote signaling server, e.g.
// wss://signal.example.com. The topic path is derived from the pairing code.
type WebsocketSubscriber struct {
	baseURL string
}

// NewWebsocketSubscriber creates a subscriber for the given server base URL.
func NewWebsocketSubscriber(baseURL string) *WebsocketSubscriber {
	return &WebsocketSubscriber{baseURL: strings.TrimRight(baseURL, "/")}
}

// WebsocketBaseURL turns an HTTP server base URL into its WebSocket form.
// Already-ws URLs pass through unchanged.
func WebsocketBaseURL(server string) string {
	switch {
	case strings.HasPrefix(server, "https://"):
		return "wss://" + strings.TrimPrefix(server, "https://")
	case strings.HasPrefix(server, "http://"):
		return "ws://" + strings.TrimPrefix(server, "http://")
	}
	return server
}

// Subscribe dials the code's topic. A dial failure means signaling is
// unavailable; callers treat it as a terminal session failure.
func (s *WebsocketSubscriber) Subscribe(code string) (Channel, error) {
	code = NormalizePairCode(code)
	if !ValidatePairCode(code) {
		return nil, errors.Errorf("invalid pairing code %q", code)
	}

	wsURL := fmt.Sprintf("%s/ws/pair/%s", s.baseURL, code)
	if _, err := url.Parse(wsURL); err != nil {
		return nil, errors.Wrapf(err, "invalid signaling url %q", wsURL)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "signaling dial (status %s)", resp.Status)
		}
		return nil, errors.Wrap(err, "signaling dial")
	}

	ch := &WebsocketChannel{conn: conn, code: code}
	go ch.readLoop()
	return ch, nil
}

// WebsocketChannel is a live attachment to a remote signaling topic.
type WebsocketChannel struct {
	conn *websocket.Conn
	code string

	mu           sync.Mutex
	onMessage    func(Message)
	onDisconnect func(error)
	closed       bool
}

func (c *WebsocketChannel) Send(msg Message) error {
	msg.Code = c.code

	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal signaling message")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "signaling send")
	}
	return nil
}

func (c *WebsocketChannel) OnMessage(handler func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

func (c *WebsocketChannel) OnDisconnect(handler func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = handler
}

// Unsubscribe closes the socket. Safe to call more than once.
func (c *WebsocketChannel) Unsubscribe() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.conn.Close()
}

func (c *WebsocketChannel) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			handler := c.onDisconnect
			c.closed = true
			c.mu.Unlock()

			// A drop the owner did not ask for is a connection-level
			// failure, not something to swallow.
			if !closed && handler != nil {
				handler(errors.Wrap(err, "signaling transport"))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("ignoring malformed signaling message: %v", err)
			continue
		}

		c.mu.Lock()
		handler := c.onMessage
		c.mu.Unlock()

		if handler != nil {
			handler(msg)
		}
	}
}
