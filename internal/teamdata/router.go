package teamdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/pairamid-live/internal/api"
	"github.com/rickgao/pairamid-live/internal/connection"
)

// Message types pushed on the event channel.
const (
	MsgPairs = "pairs"
	MsgTeam  = "team"
	MsgUsers = "users"
)

// Routing outcomes reported to a MessageObserver.
const (
	OutcomeApplied    = "applied"
	OutcomeParseError = "parse_error"
	OutcomeUnknown    = "unknown"
	OutcomeOtherTeam  = "other_team"
)

// Envelope is the wire format of a channel message.
type Envelope struct {
	Type   string          `json:"type"`
	TeamID string          `json:"team_id"`
	Data   json.RawMessage `json:"data"`
}

// MessageObserver is told how each message was routed. May be nil.
type MessageObserver interface {
	ObserveMessage(msgType, outcome string)
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	MessagesApplied  int64
	ParseErrors      int64
	UnknownMessages  int64
	OtherTeam        int64
}

// Router applies channel messages for one team to a Store.
type Router struct {
	teamID   string
	input    <-chan connection.TimestampedMessage
	store    *Store
	observer MessageObserver
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats RouterStats
}

// NewRouter creates a Router reading from input.
func NewRouter(teamID string, input <-chan connection.TimestampedMessage, store *Store, observer MessageObserver, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		teamID:   teamID,
		input:    input,
		store:    store,
		observer: observer,
		logger:   logger.With("component", "router"),
	}
}

// Start begins routing messages.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started", "team_id", r.teamID)
	return nil
}

// Stop gracefully shuts down the router.
func (r *Router) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route parses and applies a single message.
func (r *Router) route(raw connection.TimestampedMessage) {
	var env Envelope
	if err := json.Unmarshal(raw.Data, &env); err != nil {
		r.logger.Warn("failed to parse message envelope", "error", err)
		r.record("", OutcomeParseError)
		return
	}

	if env.TeamID != "" && env.TeamID != r.teamID {
		r.record(env.Type, OutcomeOtherTeam)
		return
	}

	at := raw.ReceivedAt.UnixMicro()
	var err error

	switch env.Type {
	case MsgPairs:
		var pairs []api.APIPair
		if err = decode(env.Data, &pairs); err == nil {
			r.store.ApplyPairs(api.PairsToModel(pairs), at)
		}
	case MsgTeam:
		var team api.APITeam
		if err = decode(env.Data, &team); err == nil {
			r.store.ApplyTeam(team.ToModel(), at)
		}
	case MsgUsers:
		var users []api.APIUser
		if err = decode(env.Data, &users); err == nil {
			r.store.ApplyUsers(api.UsersToModel(users), at)
		}
	default:
		r.logger.Debug("ignoring unknown message type", "type", env.Type)
		r.record(env.Type, OutcomeUnknown)
		return
	}

	if err != nil {
		r.logger.Warn("failed to parse message", "type", env.Type, "error", err)
		r.record(env.Type, OutcomeParseError)
		return
	}
	r.record(env.Type, OutcomeApplied)
}

func (r *Router) record(msgType, outcome string) {
	r.mu.Lock()
	r.stats.MessagesReceived++
	switch outcome {
	case OutcomeApplied:
		r.stats.MessagesApplied++
	case OutcomeParseError:
		r.stats.ParseErrors++
	case OutcomeUnknown:
		r.stats.UnknownMessages++
	case OutcomeOtherTeam:
		r.stats.OtherTeam++
	}
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.ObserveMessage(msgType, outcome)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(data, v)
}
