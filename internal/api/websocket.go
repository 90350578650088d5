package api

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mescon/gptimer/internal/domain"
	"github.com/mescon/gptimer/internal/eventbus"
	"github.com/mescon/gptimer/internal/logger"
	"github.com/mescon/gptimer/internal/timer"
)

// broadcastBuffer is how many messages may queue before new ones are dropped.
const broadcastBuffer = 256

// getWebSocketUpgrader returns an upgrader with origin validation
// based on GPTIMER_CORS_ORIGIN environment variable
func getWebSocketUpgrader() websocket.Upgrader {
	corsOrigins := os.Getenv("GPTIMER_CORS_ORIGIN")
	allowedOrigins := make(map[string]bool)
	if corsOrigins != "" && corsOrigins != "*" {
		for _, origin := range strings.Split(corsOrigins, ",") {
			allowedOrigins[strings.TrimSpace(origin)] = true
		}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if corsOrigins == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			if corsOrigins == "" {
				// No origin header = same-origin request
				return origin == "" || strings.Contains(origin, r.Host)
			}
			return allowedOrigins[origin]
		},
	}
}

var upgrader = getWebSocketUpgrader()

// Message is one frame sent to websocket clients.
type Message struct {
	Type string      `json:"type"` // tick, disable, error, event, log, ping, status
	Data interface{} `json:"data,omitempty"`
}

// TickData is the payload of a "tick" message.
type TickData struct {
	RemainingMs uint64 `json:"remaining_ms"`
	DurationMs  uint64 `json:"duration_ms"`
	Display     string `json:"display"`
}

// WebSocketHub streams the countdown display, lifecycle events and log lines
// to browser clients. It is a timer.View, so the engine drives it like any
// other display.
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Message
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
	logCh      chan logger.LogEntry
	// status, when set, is sent to each client right after it connects.
	status func() interface{}
}

var _ timer.View = (*WebSocketHub)(nil)

func NewWebSocketHub(eventBus eventbus.Publisher) *WebSocketHub {
	h := &WebSocketHub{
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		stop:       make(chan struct{}),
		clients:    make(map[*websocket.Conn]bool),
	}

	if eventBus != nil {
		for _, t := range domain.AllEventTypes {
			eventBus.Subscribe(t, func(e domain.Event) {
				h.send(Message{Type: "event", Data: e})
			})
		}
	}

	h.logCh = logger.Subscribe()
	go func() {
		for entry := range h.logCh {
			h.send(Message{Type: "log", Data: entry})
		}
	}()

	go h.run()
	return h
}

// SetStatusSource sets the snapshot sent as a "status" message to new clients.
func (h *WebSocketHub) SetStatusSource(status func() interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

// send queues msg without blocking; View methods run under the engine lock.
func (h *WebSocketHub) send(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logger.Debugf("WebSocket broadcast queue full, dropping %s message", msg.Type)
	}
}

// SetDisplay is covered by the tick sent from SetProgress.
func (h *WebSocketHub) SetDisplay(remainingMs uint64) {}

func (h *WebSocketHub) SetProgress(currentMs, maxMs uint64) {
	h.send(Message{Type: "tick", Data: TickData{
		RemainingMs: currentMs,
		DurationMs:  maxMs,
		Display:     timer.FormatRemaining(currentMs),
	}})
}

func (h *WebSocketHub) Disable(control timer.Control) {
	h.send(Message{Type: "disable", Data: control})
}

func (h *WebSocketHub) ReportError(title string, err error) {
	h.send(Message{Type: "error", Data: gin.H{"title": title, "error": err.Error()}})
}

func (h *WebSocketHub) run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				_ = client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			logger.Debugf("WebSocket client connected (Total: %d)", len(h.clients))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if err := client.Close(); err != nil {
					logger.Debugf("WebSocket close error: %v", err)
				}
				logger.Debugf("WebSocket client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := client.WriteJSON(message); err != nil {
					logger.Debugf("WebSocket write error: %v", err)
					if closeErr := client.Close(); closeErr != nil {
						logger.Debugf("WebSocket close error during broadcast: %v", closeErr)
					}
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Close disconnects every client and stops the hub.
func (h *WebSocketHub) Close() {
	h.stopOnce.Do(func() {
		logger.Unsubscribe(h.logCh)
		close(h.stop)
	})
}

func (h *WebSocketHub) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	select {
	case h.register <- ws:
	case <-h.stop:
		_ = ws.Close()
		return
	}

	// Send initial ping to verify connection, then the current status
	h.mu.Lock()
	if err := ws.WriteJSON(Message{Type: "ping", Data: time.Now()}); err != nil {
		logger.Debugf("Failed to send initial ping: %v", err)
	}
	if h.status != nil {
		if err := ws.WriteJSON(Message{Type: "status", Data: h.status()}); err != nil {
			logger.Debugf("Failed to send initial status: %v", err)
		}
	}
	h.mu.Unlock()

	const (
		pongWait   = 60 * time.Second
		pingPeriod = (pongWait * 9) / 10
	)

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Debugf("Failed to set initial read deadline: %v", err)
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			h.mu.Lock()
			if _, exists := h.clients[ws]; !exists {
				h.mu.Unlock()
				return
			}
			// Write ping while holding mutex to prevent concurrent writes with broadcast
			err := ws.WriteMessage(websocket.PingMessage, nil)
			h.mu.Unlock()
			if err != nil {
				logger.Debugf("WebSocket ping error: %v", err)
				h.disconnect(ws)
				return
			}
		}
	}()

	defer func() {
		h.disconnect(ws)
		logger.Debugf("WebSocket client handler exited")
	}()

	// Reads keep the pong handler running; client messages are ignored.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *WebSocketHub) disconnect(ws *websocket.Conn) {
	select {
	case h.unregister <- ws:
	case <-h.stop:
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
