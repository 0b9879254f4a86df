// Package admin serves the provider's HTTP health, metrics and inspection
// endpoints.
//
// Ownership boundary:
// - gin router, middleware and CORS policy
// - read-only views of the tree and connection table
//
// Every read of provider state is marshalled onto the transport reactor
// through Backend.Do; handlers never touch the tree directly.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/emberctl/internal/logging"
	"github.com/danmuck/emberctl/internal/observability"
	"github.com/danmuck/emberctl/internal/transport"
	"github.com/danmuck/emberctl/internal/tree"
)

const version = "0.1.0"

// Backend is the provider state the admin surface reads. Snapshot and
// Connections are only called from inside Do.
type Backend interface {
	Do(ctx context.Context, fn func()) error
	Ready() <-chan struct{}
	Snapshot() tree.View
	Connections() []transport.ConnInfo
}

type Config struct {
	ListenAddr     string
	CorsOrigins    []string
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:     "127.0.0.1:9090",
		CorsOrigins:    []string{"http://localhost:3000"},
		RequestTimeout: 2 * time.Second,
	}
}

type Server struct {
	cfg     Config
	backend Backend
	router  *gin.Engine
	started time.Time
	log     zerolog.Logger
}

func New(cfg Config, backend Backend) *Server {
	observability.RegisterMetrics()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	log := logging.Component("admin")
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log, "/health", "/ready", "/metrics"))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{cfg: cfg, backend: backend, router: r, started: time.Now(), log: log}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": "emberctl",
			"version": version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.started).String(),
			"service": "emberctl",
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/tree", func(c *gin.Context) {
		var view tree.View
		if err := s.onReactor(c, func() { view = s.backend.Snapshot() }); err != nil {
			return
		}
		c.JSON(http.StatusOK, view)
	})

	s.router.GET("/connections", func(c *gin.Context) {
		var conns []transport.ConnInfo
		if err := s.onReactor(c, func() { conns = s.backend.Connections() }); err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(conns), "connections": conns})
	})
}

func (s *Server) ready() bool {
	select {
	case <-s.backend.Ready():
		return true
	default:
		return false
	}
}

// onReactor runs fn through the backend and writes an error response when it
// could not run.
func (s *Server) onReactor(c *gin.Context, fn func()) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()
	err := s.backend.Do(ctx, fn)
	if err == nil {
		return nil
	}
	status := http.StatusServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
	return err
}

// Serve listens on cfg.ListenAddr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.ListenAddr).Msg("admin.Serve listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("admin.Serve stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
