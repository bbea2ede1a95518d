package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pairamid-live/internal/channel"
	"github.com/rickgao/pairamid-live/internal/config"
	"github.com/rickgao/pairamid-live/internal/connection"
	"github.com/rickgao/pairamid-live/internal/eventloop"
	"github.com/rickgao/pairamid-live/internal/journal"
	"github.com/rickgao/pairamid-live/internal/lifecycle"
	"github.com/rickgao/pairamid-live/internal/metrics"
	"github.com/rickgao/pairamid-live/internal/server"
	"github.com/rickgao/pairamid-live/internal/teamdata"
)

const stopTimeout = 10 * time.Second

// deps are the process-wide components every generation shares.
type deps struct {
	cfg     *config.Config
	source  teamdata.SnapshotSource
	metrics *metrics.Metrics
	journal *journal.Writer // nil when the journal is disabled
	reload  func(reason string)
	logger  *slog.Logger
}

// app is one application generation. A full reload stops it and builds a
// new one from scratch.
type app struct {
	gen    uuid.UUID
	logger *slog.Logger

	handle *channel.Handle
	loop   *eventloop.Loop
	ctrl   *lifecycle.Controller
	store  *teamdata.Store
	loader *teamdata.Loader
	router *teamdata.Router

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startApp(ctx context.Context, d deps) (*app, error) {
	gen := uuid.New()
	logger := d.logger.With("generation", gen.String())
	d.metrics.GenerationStarted()

	appCtx, cancel := context.WithCancel(ctx)
	a := &app{
		gen:    gen,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	handle, err := channel.Open(appCtx, sessionConfig(d.cfg), logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	a.handle = handle

	observers := []lifecycle.Observer{d.metrics}
	if d.journal != nil {
		observers = append(observers, d.journal.Observer(gen))
	}

	a.loop = eventloop.New(clock.New(), logger)
	a.ctrl = lifecycle.NewController(
		lifecycle.Config{
			PollInterval:  d.cfg.Recovery.PollInterval,
			MaxAttempts:   d.cfg.Recovery.MaxAttempts,
			FallbackDelay: d.cfg.Recovery.FallbackDelay,
		},
		a.loop,
		handle,
		lifecycle.ReloaderFunc(d.reload),
		logger,
		observers...,
	)

	a.store = teamdata.NewStore(func(present bool) {
		if err := a.ctrl.SetInitialData(present); err != nil {
			logger.Debug("initial data flag not delivered", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(appCtx)
	g.Go(func() error {
		return a.loop.Run(gctx)
	})
	go func() {
		a.err = g.Wait()
		close(a.done)
	}()

	a.router = teamdata.NewRouter(d.cfg.Team.ID, handle.Messages(), a.store, d.metrics, logger)
	if err := a.router.Start(appCtx); err != nil {
		a.stop()
		return nil, fmt.Errorf("start router: %w", err)
	}

	a.loader = teamdata.NewLoader(
		teamdata.LoaderConfig{
			TeamID:          d.cfg.Team.ID,
			RefreshInterval: d.cfg.Team.RefreshInterval,
			Timeout:         d.cfg.API.Timeout,
		},
		d.source, a.store, d.metrics, logger,
	)
	if err := a.loader.Start(appCtx); err != nil {
		a.stop()
		return nil, fmt.Errorf("start loader: %w", err)
	}

	if err := a.ctrl.Mount(); err != nil {
		a.stop()
		return nil, fmt.Errorf("mount controller: %w", err)
	}

	logger.Info("application started", "team_id", d.cfg.Team.ID)
	return a, nil
}

func (a *app) backend() *server.Backend {
	return &server.Backend{
		Generation: a.gen,
		Lifecycle:  a.ctrl,
		Data:       a.store,
		Channel:    a.handle,
	}
}

// stop tears the generation down. The view is unmounted first so the
// detector and the flicker timer are released on the loop, then the loop
// goes so no lifecycle work runs against components that are being closed.
func (a *app) stop() {
	a.unmount()
	a.cancel()
	<-a.done

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if a.loader != nil {
		if err := a.loader.Stop(ctx); err != nil {
			a.logger.Warn("loader stop failed", "error", err)
		}
	}
	if a.router != nil {
		if err := a.router.Stop(ctx); err != nil {
			a.logger.Warn("router stop failed", "error", err)
		}
	}
	if err := a.handle.Close(); err != nil {
		a.logger.Debug("channel close", "error", err)
	}

	a.logger.Info("application stopped", "final_state", a.ctrl.Status().State)
}

// unmount posts Unmount and waits until the loop has run it. Tasks run in
// order, so the marker task runs after the unmount.
func (a *app) unmount() {
	if err := a.ctrl.Unmount(); err != nil {
		a.logger.Debug("unmount skipped", "error", err)
		return
	}
	ran := make(chan struct{})
	if err := a.loop.Post(func() { close(ran) }); err != nil {
		return
	}
	select {
	case <-ran:
	case <-a.done:
	case <-time.After(stopTimeout):
		a.logger.Warn("unmount did not run before teardown", "timeout", stopTimeout)
	}
}

func sessionConfig(cfg *config.Config) connection.SessionConfig {
	sc := connection.DefaultSessionConfig()
	sc.Client.URL = cfg.Channel.URL
	sc.Client.Token = cfg.API.Token
	sc.Client.HandshakeTimeout = cfg.Channel.HandshakeTimeout
	sc.Client.PingInterval = cfg.Channel.PingInterval
	sc.Client.PingTimeout = cfg.Channel.PingTimeout
	sc.Client.WriteTimeout = cfg.Channel.WriteTimeout
	sc.Client.BufferSize = cfg.Channel.BufferSize
	sc.RedialBaseWait = cfg.Channel.RedialBaseWait
	sc.RedialMaxWait = cfg.Channel.RedialMaxWait
	return sc
}
