package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pairamid-live/internal/api"
	"github.com/rickgao/pairamid-live/internal/config"
	"github.com/rickgao/pairamid-live/internal/database"
	"github.com/rickgao/pairamid-live/internal/journal"
	"github.com/rickgao/pairamid-live/internal/metrics"
	"github.com/rickgao/pairamid-live/internal/server"
	"github.com/rickgao/pairamid-live/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/pairamid-live.local.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting pairamid-live",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"team_id", cfg.Team.ID,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("pairamid-live failed", "error", err)
		os.Exit(1)
	}
	logger.Info("pairamid-live stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reloads, requestReload := newReloadRequester()

	m := metrics.New()

	var db server.Pinger
	var jw *journal.Writer
	if cfg.Journal.Enabled {
		pool, err := database.Connect(ctx, cfg.Database, "pairamid-live "+cfg.Instance.ID, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := journal.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		jw = journal.NewWriter(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
			InstanceID:    cfg.Instance.ID,
			TeamID:        cfg.Team.ID,
		}, pool, m, logger)
		if err := jw.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			jw.Stop(shutdownCtx)
		}()
		db = pool
	}

	srv := server.New(server.Config{
		Port:        cfg.Server.Port,
		MetricsPath: cfg.Server.MetricsPath,
		Mode:        cfg.Server.Mode,
	}, m.Registry(), db, requestReload, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		srv.Stop(shutdownCtx)
	}()

	source := api.NewClient(
		cfg.API.RestURL,
		cfg.API.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)
	d := deps{
		cfg:     cfg,
		source:  source,
		metrics: m,
		journal: jw,
		reload:  requestReload,
		logger:  logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				logger.Info("received SIGHUP")
				requestReload("signal")
			}
		}
	})
	g.Go(func() error {
		return supervise(gctx, d, srv, reloads)
	})
	return g.Wait()
}

// newReloadRequester returns the reload queue and a non-blocking request
// func. Requests made while one is already queued coalesce into it.
func newReloadRequester() (chan string, func(reason string)) {
	reloads := make(chan string, 1)
	return reloads, func(reason string) {
		select {
		case reloads <- reason:
		default:
		}
	}
}

// supervise runs one application generation at a time and replaces it on
// every reload request until ctx is cancelled.
func supervise(ctx context.Context, d deps, srv *server.Server, reloads chan string) error {
	for {
		a, err := startApp(ctx, d)
		if err != nil {
			return err
		}
		srv.Attach(a.backend())

		var reason string
		select {
		case <-ctx.Done():
			srv.Attach(nil)
			a.stop()
			return nil
		case reason = <-reloads:
		case <-a.done:
			reason = "event loop exited"
			if a.err != nil {
				d.logger.Error("event loop failed", "error", a.err)
			}
		}

		d.logger.Info("reloading application", "reason", reason, "generation", a.gen.String())
		srv.Attach(nil)
		a.stop()

		// Requests raised by the old generation while it was stopping are
		// satisfied by this rebuild.
		select {
		case <-reloads:
		default:
		}
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
