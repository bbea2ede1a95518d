package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket connection to the event endpoint.
type Client interface {
	// Connect dials the endpoint and starts reading.
	Connect(ctx context.Context) error

	// Close sends a normal close frame and releases the connection.
	Close() error

	// Send writes one text frame.
	Send(data []byte) error

	// Messages returns inbound frames stamped with their local receive time.
	Messages() <-chan TimestampedMessage

	// Errors carries the single error that ended the connection.
	Errors() <-chan error

	// IsConnected reports whether the connection is up.
	IsConnected() bool

	// Stats returns traffic counters for this connection.
	Stats() ClientStats
}

// ClientStats describes the traffic of one connection.
type ClientStats struct {
	Received    uint64
	Dropped     uint64 // frames discarded because Messages was full
	ConnectedAt time.Time
	LastSeen    time.Time // last inbound frame of any type
}

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// writeMu serializes every write, control frames included.
	writeMu sync.Mutex

	mu          sync.Mutex
	conn        *websocket.Conn
	closed      bool
	connectedAt time.Time

	connected atomic.Bool
	lastSeen  atomic.Int64 // unix nanos
	received  atomic.Uint64
	dropped   atomic.Uint64
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return ErrAlreadyClosed
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial: handshake status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial: %w", err)
	}

	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	conn.SetPingHandler(func(data string) error {
		c.touch()
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connectedAt = time.Now()
	c.mu.Unlock()

	c.touch()
	c.connected.Store(true)

	go c.readLoop(conn)
	if c.cfg.PingInterval > 0 {
		go c.keepalive(conn)
	}

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	c.connected.Store(false)
	close(c.done)

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *client) Send(data []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

func (c *client) Errors() <-chan error {
	return c.errors
}

func (c *client) IsConnected() bool {
	return c.connected.Load()
}

func (c *client) Stats() ClientStats {
	c.mu.Lock()
	connectedAt := c.connectedAt
	c.mu.Unlock()

	st := ClientStats{
		Received:    c.received.Load(),
		Dropped:     c.dropped.Load(),
		ConnectedAt: connectedAt,
	}
	if ns := c.lastSeen.Load(); ns > 0 {
		st.LastSeen = time.Unix(0, ns)
	}
	return st
}

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// idle returns how long the connection has been silent.
func (c *client) idle() time.Duration {
	return time.Since(time.Unix(0, c.lastSeen.Load()))
}

// fail marks the connection down and publishes err unless Close ran first.
func (c *client) fail(err error) {
	c.connected.Store(false)

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.errors <- err:
	default:
	}
}

// readLoop forwards every data frame; any inbound frame counts as activity.
func (c *client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			c.fail(err)
			return
		}

		c.touch()
		c.received.Add(1)

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.dropped.Add(1)
			c.logger.Warn("message buffer full, dropping message", "dropped", c.dropped.Load())
		}
	}
}

// keepalive pings the server and fails the connection once it has been
// silent for longer than PingTimeout.
func (c *client) keepalive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		if !c.connected.Load() {
			return
		}

		if c.cfg.PingTimeout > 0 && c.idle() > c.cfg.PingTimeout {
			c.logger.Warn("connection stale",
				"idle", c.idle(),
				"timeout", c.cfg.PingTimeout,
			)
			c.fail(ErrStaleConnection)
			// Unblocks readLoop; its error is discarded since errors is full.
			conn.Close()
			return
		}

		c.writeMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(c.cfg.WriteTimeout))
		c.writeMu.Unlock()
		if err != nil {
			c.logger.Debug("failed to send ping", "error", err)
		}
	}
}
