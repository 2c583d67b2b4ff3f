package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/chordshift/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	// maxWSMessageSize bounds a single client message; live editing sends
	// whole charts, so it matches the JSON body limit.
	maxWSMessageSize = maxJSONBody
	wsSendBuffer     = 256
)

// Client message types.
const (
	WSTypeTranspose = "transpose"
	WSTypeEntry     = "entry"
	WSTypePing      = "ping"
)

// WSRequest is a message sent by a WebSocket client.
type WSRequest struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	TransposeRequest
}

// WSReply answers a single WSRequest.
type WSReply struct {
	Type      string             `json:"type"` // "result", "error", "pong"
	ID        string             `json:"id,omitempty"`
	Result    *TransposeResponse `json:"result,omitempty"`
	Error     *APIError          `json:"error,omitempty"`
	Timestamp string             `json:"timestamp"`
}

// ProgressMessage is broadcast to every client when a job changes state.
type ProgressMessage struct {
	Type      string    `json:"type"` // always "job"
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// Client represents a WebSocket client connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *tokenBucket
	ctx     context.Context
	cancel  context.CancelFunc
}

// Hub maintains active WebSocket connections and broadcasts messages.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewHub creates a new WebSocket hub. Call Run to start delivering
// broadcasts and Close to shut it down.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}
}

// Run delivers broadcasts until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client channel full, disconnect
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
	})
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	logging.WebSocketEvent("client_connected", n)
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		logging.WebSocketEvent("client_disconnected", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// sendTo queues message for one client. It reports false if the client is
// gone or its buffer is full.
func (h *Hub) sendTo(c *Client, message []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Broadcast sends v, encoded as JSON, to all connected clients.
func (h *Hub) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error("failed to marshal broadcast message", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJob announces a job state change.
func (h *Hub) BroadcastJob(id string, status JobStatus, progress int, message string) {
	h.Broadcast(ProgressMessage{
		Type:      "job",
		JobID:     id,
		Status:    status,
		Progress:  progress,
		Message:   message,
		Timestamp: timestamp(),
	})
}

// reply encodes r and queues it for c.
func (c *Client) reply(r WSReply) {
	r.Timestamp = timestamp()
	data, err := json.Marshal(r)
	if err != nil {
		logging.Error("failed to marshal websocket reply", "error", err)
		return
	}
	if !c.hub.sendTo(c, data) {
		logging.Warn("websocket reply dropped", "id", r.ID)
	}
}

func (c *Client) replyError(id, code, message string) {
	c.reply(WSReply{Type: "error", ID: id, Error: &APIError{Code: code, Message: message}})
}

// readPump reads client requests and answers them in order.
func (c *Client) readPump(s *Server) {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxWSMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			return
		}

		if !c.limiter.allow() {
			c.replyError("", "RATE_LIMIT_EXCEEDED", "Too many messages")
			continue
		}

		var req WSRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.replyError("", "INVALID_JSON", "Invalid JSON message")
			continue
		}
		s.handleWSRequest(c, &req)
	}
}

func (s *Server) handleWSRequest(c *Client, req *WSRequest) {
	var (
		resp *TransposeResponse
		err  error
	)
	switch req.Type {
	case WSTypePing:
		c.reply(WSReply{Type: "pong", ID: req.ID})
		return
	case WSTypeTranspose, "":
		resp, err = s.transposeChart(c.ctx, &req.TransposeRequest)
	case WSTypeEntry:
		resp, err = s.transposeEntry(c.ctx, &req.TransposeRequest)
	default:
		c.replyError(req.ID, "UNKNOWN_TYPE", "Unknown message type: "+req.Type)
		return
	}

	if err != nil {
		_, code := statusFor(err)
		c.replyError(req.ID, code, err.Error())
		return
	}
	c.reply(WSReply{Type: "result", ID: req.ID, Result: resp})
}

// writePump writes queued messages, one frame each, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isOriginAllowed checks the Origin header against the allow list.
// An empty list allows every origin.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// handleWebSocket upgrades GET /ws and serves live transposition.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if isOriginAllowed(origin, s.cfg.AllowedOrigins) {
				return true
			}
			logging.SecurityEvent("websocket_origin_rejected", "api", "origin", origin)
			return false
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}

	rate := s.cfg.WSMessageRate
	if rate <= 0 {
		rate = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, wsSendBuffer),
		limiter: newTokenBucket(float64(rate*2), float64(rate), time.Now),
		ctx:     logging.WithRequestID(ctx, logging.GetRequestID(r.Context())),
		cancel:  cancel,
	}

	s.hub.Register(client)

	go client.writePump()
	go client.readPump(s)
}
