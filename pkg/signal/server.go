package signal

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pedalcast/pedalcast/pkg/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Server relays signaling messages between subscribers of the same pairing
// code over WebSocket. Messages are never persisted: a message is delivered
// to the code's current subscribers or dropped.
type Server struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	upgrader websocket.Upgrader
}

type room struct {
	code    string
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

type wsClient struct {
	id     string
	code   string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// NewServer creates an empty relay.
func NewServer() *Server {
	return &Server{
		rooms: make(map[string]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin filtering is handled by router middleware.
				return true
			},
		},
	}
}

// HandleWS upgrades the request and attaches the connection to the code's
// topic until the socket closes.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request, code string) {
	code = NormalizePairCode(code)
	if !ValidatePairCode(code) {
		http.Error(w, "invalid pairing code", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		id:     uuid.New().String(),
		code:   code,
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.addClient(client)
	log.Debugf("peer %s subscribed to %s", client.id, TopicForCode(code))

	go client.writePump()
	go client.readPump()
}

// SubscriberCount reports how many connections are attached to a code.
func (s *Server) SubscriberCount(code string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[NormalizePairCode(code)]
	if !ok {
		return 0
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.clients)
}

// addClient joins a client to its code's room, creating the room as needed.
// Membership is added while still holding the server lock so a concurrent
// removeClient cannot reap the room between lookup and add.
func (s *Server) addClient(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[c.code]
	if !ok {
		rm = &room{code: c.code, clients: make(map[*wsClient]bool)}
		s.rooms[c.code] = rm
	}

	rm.mu.Lock()
	rm.clients[c] = true
	rm.mu.Unlock()
}

func (s *Server) removeClient(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[c.code]
	if !ok {
		return
	}

	rm.mu.Lock()
	delete(rm.clients, c)
	empty := len(rm.clients) == 0
	rm.mu.Unlock()

	// Topics exist only while someone is attached.
	if empty {
		delete(s.rooms, c.code)
		log.Debugf("removed empty topic %s", TopicForCode(c.code))
	}
}

// relay forwards a message to every other subscriber of the room.
func (rm *room) relay(from *wsClient, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("marshal signaling message: %v", err)
		return
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for c := range rm.clients {
		if c == from {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Warnf("dropping message for peer %s, buffer full", c.id)
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("websocket read: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("ignoring malformed signaling message from %s: %v", c.id, err)
			continue
		}

		msg.Code = c.code
		msg.PeerID = c.id

		c.server.mu.RLock()
		rm, ok := c.server.rooms[c.code]
		c.server.mu.RUnlock()
		if ok {
			rm.relay(c, msg)
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
