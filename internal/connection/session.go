package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session keeps one websocket connection alive, re-dialing after every drop.
type Session struct {
	cfg       SessionConfig
	logger    *slog.Logger
	newClient func(ClientConfig, *slog.Logger) Client

	// Output channels
	drops    chan Drop
	messages chan TimestampedMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	current Client
	started bool
	closed  bool
}

// NewSession creates a Session. Call Start to begin dialing.
func NewSession(cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DropBufferSize < 1 {
		cfg.DropBufferSize = 1
	}
	if cfg.Client.BufferSize < 1 {
		cfg.Client.BufferSize = 1
	}

	return &Session{
		cfg:       cfg,
		logger:    logger,
		newClient: NewClient,
		drops:     make(chan Drop, cfg.DropBufferSize),
		messages:  make(chan TimestampedMessage, cfg.Client.BufferSize),
	}
}

// Start begins the dial loop in the background.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrAlreadyClosed
	}
	if s.started {
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("session started", "url", s.cfg.Client.URL)
	return nil
}

// Close stops re-dialing and closes the current connection.
// The Drops and Messages channels are closed once the dial loop exits.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	current := s.current
	s.current = nil
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	var err error
	if current != nil {
		err = current.Close()
	}

	s.wg.Wait()
	close(s.drops)
	close(s.messages)

	if started {
		s.logger.Info("session closed", "url", s.cfg.Client.URL)
	}
	return err
}

// IsConnected reports whether the current connection is up.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.IsConnected()
}

// Send writes data on the current connection.
func (s *Session) Send(data []byte) error {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		return ErrNotConnected
	}
	return current.Send(data)
}

// Drops returns the channel of connection losses.
func (s *Session) Drops() <-chan Drop {
	return s.drops
}

// Messages returns the channel of inbound messages across reconnects.
func (s *Session) Messages() <-chan TimestampedMessage {
	return s.messages
}

// run dials, pumps, and re-dials with exponential backoff until the session closes.
func (s *Session) run() {
	defer s.wg.Done()

	var wait time.Duration

	for {
		if wait > 0 {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		c := s.newClient(s.cfg.Client, s.logger)
		if err := c.Connect(s.ctx); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			wait = s.nextWait(wait)
			s.logger.Warn("dial failed",
				"url", s.cfg.Client.URL,
				"error", err,
				"retry_in", wait,
			)
			s.emit(Drop{Kind: DropError, Err: err, At: time.Now()})
			continue
		}

		if !s.attach(c) {
			c.Close()
			return
		}
		s.logger.Info("connected", "url", s.cfg.Client.URL)

		err := s.pump(c)
		s.detach(c)
		c.Close()

		if s.ctx.Err() != nil {
			return
		}

		kind := classify(err)
		st := c.Stats()
		s.logger.Warn("connection lost",
			"kind", kind,
			"error", err,
			"received", st.Received,
			"dropped", st.Dropped,
			"uptime", time.Since(st.ConnectedAt).Round(time.Millisecond),
		)
		s.emit(Drop{Kind: kind, Err: err, At: time.Now()})
		wait = s.cfg.RedialBaseWait
	}
}

// nextWait doubles the redial wait, starting at the base and capped at the max.
func (s *Session) nextWait(wait time.Duration) time.Duration {
	if wait <= 0 {
		return s.cfg.RedialBaseWait
	}
	wait *= 2
	if s.cfg.RedialMaxWait > 0 && wait > s.cfg.RedialMaxWait {
		wait = s.cfg.RedialMaxWait
	}
	return wait
}

// pump forwards messages from c until it fails or the session closes.
func (s *Session) pump(c Client) error {
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()

		case err := <-c.Errors():
			return err

		case msg := <-c.Messages():
			select {
			case s.messages <- msg:
			case <-s.ctx.Done():
				return s.ctx.Err()
			default:
				s.logger.Warn("session message buffer full, dropping")
			}
		}
	}
}

func (s *Session) attach(c Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.current = c
	return true
}

func (s *Session) detach(c Client) {
	s.mu.Lock()
	if s.current == c {
		s.current = nil
	}
	s.mu.Unlock()
}

func (s *Session) emit(d Drop) {
	select {
	case s.drops <- d:
	default:
		s.logger.Warn("drop buffer full, discarding", "kind", d.Kind)
	}
}

// classify maps the error that ended a connection to a DropKind.
func classify(err error) DropKind {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return DropClean
		}
	}
	return DropError
}
