package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/pairamid-live/internal/lifecycle"
	"github.com/rickgao/pairamid-live/internal/model"
)

// Lifecycle is the read side of a lifecycle controller.
type Lifecycle interface {
	Status() lifecycle.Status
}

// DataSource returns the current team snapshot.
type DataSource interface {
	Snapshot() (model.Snapshot, bool)
}

// Connectivity reports the channel's transport state.
type Connectivity interface {
	IsConnected() bool
}

// Pinger checks a database. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReloadFunc requests a full application reload.
type ReloadFunc func(reason string)

// Backend is the set of components of one application generation.
type Backend struct {
	Generation uuid.UUID
	Lifecycle  Lifecycle
	Data       DataSource
	Channel    Connectivity
}

// Config holds server configuration.
type Config struct {
	Port        int
	MetricsPath string
	Mode        string // gin mode
}

// Server serves the live view and operational endpoints.
type Server struct {
	cfg      Config
	gatherer prometheus.Gatherer
	db       Pinger
	reload   ReloadFunc
	logger   *slog.Logger

	backend atomic.Pointer[Backend]
	engine  *gin.Engine

	mu   sync.Mutex
	http *http.Server
	wg   sync.WaitGroup
}

// New creates a Server. gatherer, db and reload may be nil.
func New(cfg Config, gatherer prometheus.Gatherer, db Pinger, reload ReloadFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		cfg:      cfg,
		gatherer: gatherer,
		db:       db,
		reload:   reload,
		logger:   logger.With("component", "server"),
	}
	s.engine = s.routes()
	return s
}

// Attach makes b the backend served by every route. A nil b detaches.
func (s *Server) Attach(b *Backend) {
	s.backend.Store(b)
	if b != nil {
		s.logger.Debug("backend attached", "generation", b.Generation)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/live", s.handleLive)
	r.GET("/status", s.handleStatus)
	r.GET("/health", s.handleHealth)
	r.POST("/reload", s.handleReload)

	if s.gatherer != nil {
		r.GET(s.cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	s.logger.Info("http server started", "addr", ln.Addr().String(), "metrics_path", s.cfg.MetricsPath)
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
