package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/LyricScope/core/analysis"
	"github.com/FocuswithJustin/LyricScope/core/digest"
	"github.com/FocuswithJustin/LyricScope/core/errors"
	"github.com/FocuswithJustin/LyricScope/internal/logging"
	"github.com/FocuswithJustin/LyricScope/internal/server"
	"github.com/FocuswithJustin/LyricScope/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Event types pushed to every client.
const (
	EventSheetCreated = "sheet_created"
	EventSheetSaved   = "sheet_saved"
	EventSheetRenamed = "sheet_renamed"
	EventSheetDeleted = "sheet_deleted"
)

// Message types exchanged with one client.
const (
	MessageBuffer   = "buffer"
	MessageAnalysis = "analysis"
	MessageError    = "error"
)

// Event is broadcast when a sheet changes.
type Event struct {
	Type      string `json:"type"`
	SheetID   string `json:"sheet_id"`
	Title     string `json:"title,omitempty"`
	Digest    string `json:"digest,omitempty"`
	Timestamp string `json:"timestamp"`
}

func sheetEvent(typ string, sh *store.Sheet) Event {
	return Event{Type: typ, SheetID: sh.ID, Title: sh.Title, Digest: sh.Digest}
}

// ClientMessage is sent by a client on every buffer change.
type ClientMessage struct {
	Type string `json:"type"`
	// ID is echoed back so the client can drop stale replies.
	ID      string `json:"id,omitempty"`
	SheetID string `json:"sheet_id,omitempty"`
	Text    string `json:"text"`
	Marker  string `json:"marker,omitempty"`
}

// ServerMessage answers a ClientMessage.
type ServerMessage struct {
	Type     string           `json:"type"`
	ID       string           `json:"id,omitempty"`
	SheetID  string           `json:"sheet_id,omitempty"`
	Saved    bool             `json:"saved,omitempty"`
	Analysis *analysis.Result `json:"analysis,omitempty"`
	Error    *APIError        `json:"error,omitempty"`
}

// Client represents a WebSocket client connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	bucket *messageBucket

	mu     sync.Mutex
	closed bool
}

// trySend queues a message without blocking. It reports false when the
// client is gone or too slow to keep up.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub maintains active WebSocket connections and broadcasts events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run handles registration and broadcasting until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_connected", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_disconnected", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.trySend(msg) {
					// Slow client; drop it rather than stall the others.
					c.close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logging.Error("failed to marshal event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping event", "type", ev.Type)
	}
}

// messageBucket is a token bucket limiting one client's message rate.
type messageBucket struct {
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

func newMessageBucket(perSecond int) *messageBucket {
	capacity := float64(perSecond) * 2
	return &messageBucket{tokens: capacity, capacity: capacity, rate: float64(perSecond), last: time.Now()}
}

// allow is only called from the client's read pump.
func (b *messageBucket) allow() bool {
	now := time.Now()
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.last).Seconds()*b.rate)
	b.last = now
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (s *Server) upgrader() *websocket.Upgrader {
	cors := server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return cors.Allows(r.Header.Get("Origin"))
		},
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)

	c := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		bucket: newMessageBucket(s.cfg.WebSocket.MaxMessageRate),
	}
	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go s.readPump(c, logging.GetRequestID(r.Context()))
}

// readPump handles buffer messages from one client. Replies go through the
// client's send queue so that writes stay on the write pump.
func (s *Server) readPump(c *Client, requestID string) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := logging.WithRequestID(context.Background(), requestID)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnContext(ctx, "websocket unexpected close", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.bucket.allow() {
			c.reply(ServerMessage{Type: MessageError, Error: &APIError{Code: "RATE_LIMITED", Message: "too many messages"}})
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(errorMessage("", errors.NewValidation("message", "invalid JSON")))
			continue
		}
		c.reply(s.handleMessage(ctx, msg))
	}
}

// handleMessage analyzes a buffer and saves it when it names a sheet.
func (s *Server) handleMessage(ctx context.Context, msg ClientMessage) ServerMessage {
	if msg.Type != MessageBuffer {
		return errorMessage(msg.ID, errors.NewUnsupported("message type", msg.Type))
	}

	if err := s.checkLines(msg.Text); err != nil {
		return errorMessage(msg.ID, err)
	}

	reply := ServerMessage{Type: MessageAnalysis, ID: msg.ID, SheetID: msg.SheetID}
	if msg.SheetID != "" {
		sh, changed, err := s.store.Save(ctx, msg.SheetID, msg.Text)
		if err != nil {
			return errorMessage(msg.ID, err)
		}
		if changed {
			s.notify(sheetEvent(EventSheetSaved, sh))
		}
		reply.Saved = changed
	}

	res := s.analyzer.AnalyzeWith(msg.Text, analysis.Options{Marker: msg.Marker})
	logging.AnalysisRun(ctx, digest.Short(res.Digest), res.Stats.Lines,
		res.Stats.RhymeGroups+res.Stats.NearRhymeGroups, false, "source", "websocket")
	reply.Analysis = res
	return reply
}

func errorMessage(id string, err error) ServerMessage {
	code := errors.Code(err)
	message := err.Error()
	if code == errors.CodeInternal {
		logging.Error("websocket message failed", "error", err)
		message = "internal error"
	}
	return ServerMessage{Type: MessageError, ID: id, Error: &APIError{Code: code, Message: message}}
}

func (c *Client) reply(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal reply", "error", err)
		return
	}
	if !c.trySend(data) {
		logging.Warn("websocket reply dropped", "type", msg.Type)
	}
}

// writePump writes queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
