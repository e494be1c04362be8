package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/notely/internal/worker"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
	// wsSendBuffer is the per-client backlog; a client that falls further
	// behind loses messages instead of stalling the relay.
	wsSendBuffer = 64
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage is one worker message sent to progress clients.
type WebSocketMessage struct {
	Type    string      `json:"type"` // progress, batch_done, batch_failed, shutdown
	Payload interface{} `json:"payload,omitempty"`
}

// FailedPage is the wire form of worker.PageFailure.
type FailedPage struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

type batchDonePayload struct {
	BatchID    string       `json:"batch_id"`
	DocumentID int64        `json:"document_id"`
	Pages      int          `json:"pages"`
	Failed     []FailedPage `json:"failed,omitempty"`
}

type batchFailedPayload struct {
	BatchID string `json:"batch_id"`
	Error   string `json:"error"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// toWebSocketMessage converts a worker message for the wire.
func toWebSocketMessage(msg worker.Message) WebSocketMessage {
	switch m := msg.(type) {
	case worker.Progress:
		return WebSocketMessage{Type: "progress", Payload: m}
	case worker.BatchDone:
		p := batchDonePayload{BatchID: m.BatchID, DocumentID: m.DocumentID, Pages: m.Pages}
		for _, f := range m.Failed {
			fp := FailedPage{Index: f.Index, Path: f.Path}
			if f.Err != nil {
				fp.Error = f.Err.Error()
			}
			p.Failed = append(p.Failed, fp)
		}
		return WebSocketMessage{Type: "batch_done", Payload: p}
	case worker.BatchFailed:
		p := batchFailedPayload{BatchID: m.BatchID}
		if m.Err != nil {
			p.Error = m.Err.Error()
		}
		return WebSocketMessage{Type: "batch_failed", Payload: p}
	default:
		return WebSocketMessage{Type: "shutdown"}
	}
}

type wsClient struct {
	send chan []byte
}

// progressHub fans worker messages out to every connected client.
type progressHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	attachOnce sync.Once
	detach     func()
}

func newProgressHub(logger *slog.Logger) *progressHub {
	return &progressHub{logger: logger, clients: make(map[*wsClient]struct{})}
}

// attach subscribes the hub to src once.
func (h *progressHub) attach(src ProgressSource) {
	h.attachOnce.Do(func() {
		h.detach = src.Add(worker.ListenerFuncs{
			Progress:    func(m worker.Progress) { h.broadcast(m) },
			BatchDone:   func(m worker.BatchDone) { h.broadcast(m) },
			BatchFailed: func(m worker.BatchFailed) { h.broadcast(m) },
			Shutdown:    func() { h.broadcast(worker.Shutdown{}) },
		})
	})
}

func (h *progressHub) register() (*wsClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &wsClient{send: make(chan []byte, wsSendBuffer)}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *progressHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast never blocks the relay goroutine.
func (h *progressHub) broadcast(msg worker.Message) {
	data, err := json.Marshal(toWebSocketMessage(msg))
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			websocketMessagesTotal.WithLabelValues("dropped").Inc()
		}
	}
}

func (h *progressHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *progressHub) close() {
	if h.detach != nil {
		h.detach()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// progressWebSocketHandler streams worker messages to the client until it
// disconnects. Client messages are read only to detect the close.
func (s *Server) progressWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	client, ok := s.hub.register()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(wsWriteWait))
		return
	}
	defer s.hub.unregister(client)

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	go s.readPump(conn, client)
	s.writePump(conn, client)
}

// readPump discards client messages and unregisters the client when the
// connection ends, which stops writePump.
func (s *Server) readPump(conn *websocket.Conn, client *wsClient) {
	defer s.hub.unregister(client)

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
	}
}

func (s *Server) writePump(conn *websocket.Conn, client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.sendWebSocket(conn, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// sendWebSocket writes one text frame.
func (s *Server) sendWebSocket(conn WebSocketConnWriter, data []byte) error {
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}
