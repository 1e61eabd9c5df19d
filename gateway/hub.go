package gateway

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/captainplanet9000/cival-dashboard-sub013/metrics"
)

const (
	// sendBufferSize is the per-client send queue capacity.
	sendBufferSize = 256

	// writeWait is the deadline for a single client write.
	writeWait = time.Second * 10
	// pongWait is how long a client may stay silent after a ping.
	pongWait = time.Second * 60
	// pingPeriod is the cadence of client keepalive pings.
	pingPeriod = time.Second * 30
	// maxMessageSize bounds inbound client messages.
	maxMessageSize = 512
)

// HubConfig represents the frame hub configuration.
type HubConfig struct {
	// Metrics is the dashboard metrics collection.
	Metrics *metrics.Metrics
	// Logger is the hub logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane defaults are set.
func (cfg *HubConfig) Validate() error {
	var errs error

	if cfg.Metrics == nil {
		errs = errors.Join(errs, fmt.Errorf("metrics cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Client represents a single connected dashboard peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans rendered frames out to connected dashboard clients. A client
// whose send queue is full skips the frame, so one slow peer never stalls
// publication to the rest.
type Hub struct {
	cfg *HubConfig

	mtx     sync.RWMutex
	clients map[*Client]bool
}

// NewHub initializes a new frame hub.
func NewHub(cfg *HubConfig) (*Hub, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating hub config: %w", err)
	}

	return &Hub{
		cfg:     cfg,
		clients: make(map[*Client]bool),
	}, nil
}

// Register adds the provided connection to the hub and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mtx.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mtx.Unlock()

	h.cfg.Metrics.ConnectedClients.Set(float64(count))
	h.cfg.Logger.Info().Msgf("dashboard client connected, %d connected", count)

	go client.writePump()
	go client.readPump()

	return client
}

// remove deregisters the provided client and releases its send queue.
func (h *Hub) remove(client *Client) {
	h.mtx.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mtx.Unlock()

	if ok {
		h.cfg.Metrics.ConnectedClients.Set(float64(count))
		h.cfg.Logger.Info().Msgf("dashboard client disconnected, %d connected", count)
	}
}

// Broadcast queues the provided payload for delivery to all connected
// clients.
func (h *Hub) Broadcast(payload []byte) {
	h.mtx.RLock()
	defer h.mtx.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- payload:
			// do nothing.
		default:
			// do nothing.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return len(h.clients)
}

// Close disconnects all connected clients.
func (h *Hub) Close() {
	h.mtx.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mtx.Unlock()

	for _, client := range clients {
		_ = client.conn.Close()
	}
}

// writePump relays queued payloads to the peer and keeps the connection
// alive with pings. It owns all writes on the connection.
//
// Must be run as a goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(payload)

			// Coalesce queued payloads into the same websocket frame.
			n := len(c.send)
			for range n {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.send)
			}

			err = w.Close()
			if err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and detects peer closure. Dashboard
// clients only listen, so inbound data messages are discarded.
//
// Must be run as a goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.cfg.Logger.Debug().Err(err).Msg("dashboard client read failed")
			}
			return
		}
	}
}
