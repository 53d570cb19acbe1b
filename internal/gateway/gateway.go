// Package gateway exposes the update event stream to local UI collaborators
// over WebSocket. The hub fans bus envelopes out to connected clients as JSON
// frames; the single inbound message type lets a client request an immediate
// check. Presentation stays on the other side of the socket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/eventbus"
)

// DefaultAddr is the loopback address the daemon serves the gateway on.
const DefaultAddr = "127.0.0.1:9821"

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	sendBuffer   = 256
)

// Message is the JSON frame exchanged with clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ForceChecker triggers an immediate run of all checks.
type ForceChecker interface {
	ForceCheckAll()
}

// forwardedTopics are the bus topics mirrored onto every connected client.
var forwardedTopics = []eventbus.Topic{
	eventbus.TopicCheckStarted,
	eventbus.TopicCheckCompleted,
	eventbus.TopicNotify,
	eventbus.TopicSyncProgress,
	eventbus.TopicComponentUpdated,
	eventbus.TopicSyncError,
}

// Client is one connected WebSocket peer.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// Server is the WebSocket hub. Register, unregister, and broadcast all flow
// through the run loop, so the clients map needs no locking beyond the
// read-side counter.
type Server struct {
	bus   *eventbus.Bus
	force ForceChecker

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	upgrader   websocket.Upgrader

	lifecycle eventbus.ServiceLifecycle
	mu        sync.RWMutex
}

// Option configures a Server.
type Option func(*Server)

// WithOriginAllowed replaces the default loopback-only origin check.
func WithOriginAllowed(fn func(origin string) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return fn(origin)
		}
	}
}

// NewServer builds the hub. A nil force checker disables the force_check
// inbound message; a nil bus produces a hub that only serves client pings.
func NewServer(bus *eventbus.Bus, force ForceChecker, opts ...Option) *Server {
	s := &Server{
		bus:        bus,
		force:      force,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return loopbackOrigin(origin)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func loopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Start launches the hub loop and the bus forwarders.
func (s *Server) Start(ctx context.Context) {
	s.lifecycle.Start(ctx)
	s.lifecycle.Go(s.run)
	if s.bus != nil {
		for _, topic := range forwardedTopics {
			s.forwardTopic(topic)
		}
	}
}

// Shutdown stops the hub and waits for its goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.lifecycle.Shutdown(ctx)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) forwardTopic(topic eventbus.Topic) {
	sub := s.bus.Subscribe(topic,
		eventbus.WithSubscriptionBuffer(64),
		eventbus.WithSubscriptionName("gateway"),
	)
	s.lifecycle.AddSubscriptions(sub)
	s.lifecycle.Go(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-sub.C():
				if !ok {
					return
				}
				s.Broadcast(Message{
					Type:      string(env.Topic),
					Data:      env.Payload,
					Timestamp: env.Timestamp,
				})
			}
		}
	})
}

// Broadcast queues a frame for every connected client. Slow clients drop the
// frame rather than stall the hub.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Gateway] WARNING: marshal frame: %v", err)
		return
	}
	select {
	case s.broadcast <- payload:
	case <-s.quit:
	}
}

func (s *Server) run(ctx context.Context) {
	defer s.closeAll()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			s.mu.Unlock()
			log.Printf("[Gateway] client %s connected", client.id)

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.mu.Unlock()
			log.Printf("[Gateway] client %s disconnected", client.id)

		case payload := <-s.broadcast:
			s.mu.RLock()
			for client := range s.clients {
				select {
				case client.send <- payload:
				default:
					// Client's send channel is full, skip.
				}
			}
			s.mu.RUnlock()
		}
	}
}

func (s *Server) closeAll() {
	close(s.quit)
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		close(client.send)
		client.conn.Close()
	}
	s.clients = make(map[*Client]bool)
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] WARNING: upgrade: %v", err)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ListenAndServe runs a local HTTP server exposing the WebSocket endpoint at
// /ws until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] WARNING: read from client %s: %v", c.id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[Gateway] WARNING: malformed frame from client %s: %v", c.id, err)
			continue
		}

		switch msg.Type {
		case "force_check":
			if c.server.force != nil {
				log.Printf("[Gateway] client %s forced a check", c.id)
				c.server.force.ForceCheckAll()
			}
		default:
			// Unknown inbound types are ignored.
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
