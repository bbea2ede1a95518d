// Package channel owns the application's persistent event channel.
//
// A Handle is built exactly once per application generation by the process
// supervisor and passed by reference to everything that needs it. Nothing else
// constructs or re-creates the channel. It carries no recovery policy: it only
// reports losses to its subscribers and answers IsConnected.
package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/pairamid-live/internal/connection"
)

// LossKind is a logical failure event of the channel.
type LossKind int

const (
	// LostCleanly fires when the server closes the channel normally.
	LostCleanly LossKind = iota + 1
	// LostWithError fires on transport errors and failed (re)connects.
	LostWithError
)

// String returns the string representation of the kind.
func (k LossKind) String() string {
	switch k {
	case LostCleanly:
		return "lost-cleanly"
	case LostWithError:
		return "lost-with-error"
	default:
		return "unknown"
	}
}

// Subscription identifies one bound loss handler. The zero value is never
// returned by Subscribe.
type Subscription struct {
	ID   uint64
	Kind LossKind
}

// Valid reports whether s refers to a binding (live or removed).
func (s Subscription) Valid() bool {
	return s.ID != 0
}

// transport is the part of connection.Session the Handle relies on.
type transport interface {
	Start(ctx context.Context) error
	Close() error
	IsConnected() bool
	Drops() <-chan connection.Drop
	Messages() <-chan connection.TimestampedMessage
}

// Handle is the process-wide event channel.
type Handle struct {
	transport transport
	logger    *slog.Logger

	mu       sync.Mutex
	nextID   uint64
	handlers map[uint64]handler

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

type handler struct {
	kind LossKind
	fn   func(LossKind)
}

// Open creates the Handle and starts its transport.
func Open(ctx context.Context, cfg connection.SessionConfig, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return open(ctx, connection.NewSession(cfg, logger), logger)
}

func open(ctx context.Context, t transport, logger *slog.Logger) (*Handle, error) {
	h := &Handle{
		transport: t,
		logger:    logger,
		handlers:  make(map[uint64]handler),
		done:      make(chan struct{}),
	}

	if err := t.Start(ctx); err != nil {
		return nil, err
	}

	go h.dispatchLoop()
	return h, nil
}

// IsConnected reports whether the underlying connection is currently up.
func (h *Handle) IsConnected() bool {
	return h.transport.IsConnected()
}

// Close closes the channel. Later calls return the first call's result.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.transport.Close()
		<-h.done
		h.logger.Info("channel closed")
	})
	return h.closeErr
}

// Messages returns inbound channel messages.
func (h *Handle) Messages() <-chan connection.TimestampedMessage {
	return h.transport.Messages()
}

// Subscribe binds fn to losses of the given kind. fn runs on the Handle's
// dispatch goroutine and must not block.
func (h *Handle) Subscribe(kind LossKind, fn func(LossKind)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	h.handlers[h.nextID] = handler{kind: kind, fn: fn}
	return Subscription{ID: h.nextID, Kind: kind}
}

// Unsubscribe removes a binding. Removing an unknown or already removed
// subscription is a no-op and returns false.
func (h *Handle) Unsubscribe(sub Subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.handlers[sub.ID]; !ok {
		return false
	}
	delete(h.handlers, sub.ID)
	return true
}

// Subscribers returns the number of live bindings.
func (h *Handle) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// dispatchLoop fans transport drops out to subscribers until the transport closes.
func (h *Handle) dispatchLoop() {
	defer close(h.done)

	for drop := range h.transport.Drops() {
		kind := lossKind(drop.Kind)
		h.logger.Debug("channel lost", "kind", kind, "error", drop.Err)
		h.dispatch(kind)
	}
}

func (h *Handle) dispatch(kind LossKind) {
	h.mu.Lock()
	fns := make([]func(LossKind), 0, len(h.handlers))
	for _, hd := range h.handlers {
		if hd.kind == kind {
			fns = append(fns, hd.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

func lossKind(k connection.DropKind) LossKind {
	if k == connection.DropClean {
		return LostCleanly
	}
	return LostWithError
}
