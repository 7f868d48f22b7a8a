package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// MaxWSConnectionsTotal is used when the hub is created without a limit
	MaxWSConnectionsTotal = 100

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// Inbound commands per second per connection. Pointer moves come at
	// display refresh rate.
	wsCommandRate  = 120
	wsCommandBurst = 240

	wsWriteTimeout   = time.Second
	wsMaxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Use the centralized origin checker
		if IsAllowedOrigin(origin) {
			return true
		}

		// Log rejected origin for security monitoring
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// Client command types
const (
	CommandPointerDown = "pointerDown"
	CommandPointerMove = "pointerMove"
	CommandPointerUp   = "pointerUp"
	CommandUndo        = "undo"
)

// ClientCommand is a message sent by a browser, for example
// {"type":"pointerDown","x":120,"y":80}.
type ClientCommand struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// CommandHandler applies a client command. It runs on the connection's
// reader goroutine.
type CommandHandler func(ip string, cmd ClientCommand)

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn    *websocket.Conn
	ip      string
	limiter *rate.Limiter
}

// WebSocketHub manages all WebSocket connections with DoS protection.
// Only the Run goroutine writes to connections.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	maxClients int
	onCommand  CommandHandler

	proxies *TrustedProxies
	conns   *connLimiter
}

// HubStats is served on /api/stats.
type HubStats struct {
	Clients    int       `json:"clients"`
	MaxClients int       `json:"maxClients"`
	PerIP      ConnStats `json:"perIp"`
}

// NewWebSocketHub creates a new hub accepting at most maxClients
// connections. proxies decides which forwarding headers are believed when
// keying the per-IP cap (nil trusts none). onCommand may be nil to ignore
// client input.
func NewWebSocketHub(maxClients int, proxies *TrustedProxies, onCommand CommandHandler) *WebSocketHub {
	if maxClients <= 0 {
		maxClients = MaxWSConnectionsTotal
	}
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		maxClients: maxClients,
		onCommand:  onCommand,
		proxies:    proxies,
		conns:      newConnLimiter(MaxWSConnectionsPerIP),
	}
}

// Run starts the hub. It returns after Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.remove(conn)

		case message := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range failed {
				h.remove(conn)
			}
			IncrementWSMessages()

		case <-h.done:
			h.mu.Lock()
			for conn, client := range h.clients {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteTimeout))
				conn.Close()
				h.conns.release(client.ip)
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		}
	}
}

// remove closes conn and frees its slot. Safe to call twice.
func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		h.conns.release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Printf("📱 Client disconnected (%d remaining)", count)
		UpdateWSConnections(count)
	}
}

// Stop closes every connection and ends Run.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data any) {
	msg := map[string]any{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("⚠️ Broadcast %s dropped: %v", event, err)
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns connection counters.
func (h *WebSocketHub) Stats() HubStats {
	return HubStats{Clients: h.ClientCount(), MaxClients: h.maxClients, PerIP: h.conns.stats()}
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get client IP for rate limiting
	ip := h.proxies.ClientIP(r)

	// Check total connection limit
	if total := h.ClientCount(); total >= h.maxClients {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	// Check per-IP connection limit
	if held, ok := h.conns.acquire(ip); !ok {
		log.Printf("⚠️ WebSocket connection rejected from %s: %d already open", ip, held)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.conns.release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessageSize)

	client := &wsClient{
		conn:    conn,
		ip:      ip,
		limiter: rate.NewLimiter(wsCommandRate, wsCommandBurst),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		h.conns.release(ip)
		return
	}

	go h.readLoop(client)
}

// readLoop applies client commands until the connection fails.
func (h *WebSocketHub) readLoop(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client.conn:
		case <-h.done:
		}
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}
		// A dropped pointerUp would leave the atom held
		if cmd.Type != CommandPointerUp && !client.limiter.Allow() {
			RecordConnectionRejected("rate_limit")
			continue
		}
		if h.onCommand != nil {
			h.onCommand(client.ip, cmd)
		}
	}
}
