package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no activity)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// DropKind classifies how a connection went away.
type DropKind int

const (
	// DropClean is a close frame with a normal or going-away code.
	DropClean DropKind = iota + 1
	// DropError is a read error, a stale heartbeat, or a failed dial.
	DropError
)

// String returns the string representation of the kind.
func (k DropKind) String() string {
	switch k {
	case DropClean:
		return "clean"
	case DropError:
		return "error"
	default:
		return "unknown"
	}
}

// Drop reports one loss of the connection.
type Drop struct {
	Kind DropKind
	Err  error     // Underlying cause (nil only for synthetic drops)
	At   time.Time // Local time the drop was observed
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Event endpoint (e.g., wss://pairamid.example.com/events)
	Token            string        // Bearer token for the Authorization header ("" = none)
	HandshakeTimeout time.Duration // Dial handshake timeout
	PingInterval     time.Duration // Interval between keepalive pings
	PingTimeout      time.Duration // Max silence (no frame of any type) before the connection is stale
	WriteTimeout     time.Duration // Write deadline for sends and pings
	BufferSize       int           // Message channel buffer size
	MaxMessageSize   int64         // Read limit per frame in bytes (0 = unlimited)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     25 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
		MaxMessageSize:   1 << 20,
	}
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Client         ClientConfig
	RedialBaseWait time.Duration // First wait before re-dialing
	RedialMaxWait  time.Duration // Cap for the doubling wait
	DropBufferSize int           // Buffer size for the drops channel
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Client:         DefaultClientConfig(),
		RedialBaseWait: 1 * time.Second,
		RedialMaxWait:  5 * time.Second,
		DropBufferSize: 16,
	}
}
