package teamdata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/pairamid-live/internal/model"
)

// SnapshotSource fetches a full team snapshot. *api.Client implements it.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, teamID string) (model.Snapshot, error)
}

// FetchObserver is told about every fetch outcome. May be nil.
type FetchObserver interface {
	ObserveFetch(err error, took time.Duration)
}

// LoaderConfig holds loader configuration.
type LoaderConfig struct {
	TeamID          string
	RefreshInterval time.Duration // Time between refreshes (default: 30s)
	Timeout         time.Duration // Per-fetch timeout (default: 10s)
}

// DefaultLoaderConfig returns sensible defaults.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		RefreshInterval: 30 * time.Second,
		Timeout:         10 * time.Second,
	}
}

// Loader periodically fetches the team snapshot via the REST API.
type Loader struct {
	cfg      LoaderConfig
	source   SnapshotSource
	store    *Store
	observer FetchObserver
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoader creates a new Loader.
func NewLoader(cfg LoaderConfig, source SnapshotSource, store *Store, observer FetchObserver, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultLoaderConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Loader{
		cfg:      cfg,
		source:   source,
		store:    store,
		observer: observer,
		logger:   logger.With("component", "teamdata", "team_id", cfg.TeamID),
	}
}

// Start begins the refresh loop. The first fetch happens immediately.
func (l *Loader) Start(ctx context.Context) error {
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go l.run()

	l.logger.Info("team data loader started", "refresh_interval", l.cfg.RefreshInterval)
	return nil
}

// Stop gracefully shuts down the loader.
func (l *Loader) Stop(ctx context.Context) error {
	if l.cancel != nil {
		l.cancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("team data loader stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()

	l.refresh()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.refresh()
		}
	}
}

// refresh fetches one snapshot. A failed fetch keeps the previous data.
func (l *Loader) refresh() {
	ctx, cancel := context.WithTimeout(l.ctx, l.cfg.Timeout)
	defer cancel()

	start := time.Now()
	snap, err := l.source.GetSnapshot(ctx, l.cfg.TeamID)
	took := time.Since(start)

	if l.observer != nil {
		l.observer.ObserveFetch(err, took)
	}
	if err != nil {
		if l.ctx.Err() == nil {
			l.logger.Warn("failed to fetch team snapshot", "error", err, "duration", took)
		}
		return
	}

	l.store.Replace(snap)
	l.logger.Debug("team snapshot refreshed",
		"pairs", len(snap.Pairs),
		"users", len(snap.Users),
		"duration", took,
	)
}
