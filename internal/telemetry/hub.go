package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"LineBot/internal/barcode"
	"LineBot/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const (
	clientBuffer = 8
	writeWait    = time.Second
)

// wsClient is one websocket viewer. Only its writer goroutine touches the
// connection for writes; a full send buffer drops frames for that viewer.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, send: make(chan []byte, clientBuffer), done: make(chan struct{})}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsClient) writeLoop(drop func(*wsClient)) {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub serves a live telemetry view: websocket broadcast on /ws, the last
// snapshot on /api/latest and remote commands on /api/command.
type Hub struct {
	Addr string

	// OnCommand, when set, receives commands posted to /api/command.
	OnCommand CommandHandler

	log     zerolog.Logger
	latest  atomic.Pointer[model.Telemetry]
	skipped atomic.Int64

	mu      sync.Mutex // guards clients, server, stopped
	clients map[*wsClient]struct{}
	server  *http.Server
	stopped bool
	q       *queue[model.Telemetry]
}

// NewHub creates a hub. Nothing listens until Start.
func NewHub(addr string, log zerolog.Logger) *Hub {
	h := &Hub{Addr: addr, log: log, clients: map[*wsClient]struct{}{}}
	h.q = startQueue(16, h.broadcast)
	return h
}

// Handler returns the HTTP routes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/api/latest", h.handleLatest)
	mux.HandleFunc("/api/command", h.handleCommand)
	return mux
}

// Start listens on Addr and blocks until Stop or a listen error.
func (h *Hub) Start() error {
	srv := &http.Server{Addr: h.Addr, Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.server = srv
	h.mu.Unlock()
	h.log.Info().Str("addr", h.Addr).Msg("hub listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	srv := h.server
	clients := h.clients
	h.clients = map[*wsClient]struct{}{}
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
	if srv != nil {
		_ = srv.Close()
	}
	h.q.close()
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Latest returns the last published snapshot.
func (h *Hub) Latest() (model.Telemetry, bool) {
	t := h.latest.Load()
	if t == nil {
		return model.Telemetry{}, false
	}
	return *t, true
}

// Skipped returns how many frames slow viewers missed.
func (h *Hub) Skipped() int64 { return h.skipped.Load() }

// Publish implements Publisher. It never waits on a viewer.
func (h *Hub) Publish(t model.Telemetry) {
	h.latest.Store(&t)
	h.q.offer(t)
}

// IsConnected implements Publisher. The hub always keeps the latest snapshot.
func (h *Hub) IsConnected() bool { return true }

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newClient(conn)
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop(h.drop)
	go func() {
		defer h.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) handleLatest(w http.ResponseWriter, _ *http.Request) {
	t, ok := h.Latest()
	if !ok {
		http.Error(w, "no telemetry yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(t)
}

func (h *Hub) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 64))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	raw := strings.TrimSpace(string(body))
	cmd := barcode.ParseCommand(raw)
	if cmd == barcode.CmdUnknown {
		http.Error(w, "unknown command", http.StatusBadRequest)
		return
	}
	if h.OnCommand != nil {
		h.OnCommand(cmd, raw)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Hub) broadcast(t model.Telemetry) {
	msg, err := json.Marshal(t)
	if err != nil {
		h.log.Error().Err(err).Msg("encode telemetry")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.skipped.Add(1)
		}
	}
}
