// Package admin serves health, status and metrics for a running socket.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/syncws/internal/auth"
	"github.com/danmuck/syncws/internal/observability"
	"github.com/danmuck/syncws/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

var ErrAlreadyServing = errors.New("admin: server already serving")

// StatusSource reports the state exposed on /status and /ready.
type StatusSource interface {
	Snapshot() session.Snapshot
}

type Server struct {
	ID      string
	Addr    string
	Started time.Time

	source    StatusSource
	router    *gin.Engine
	validator auth.Validator

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

func New(id, addr string, source StatusSource, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:      id,
		Addr:    addr,
		Started: time.Now(),
		source:  source,
		router:  r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// RequireToken guards /status and /metrics with a bearer token. Call it
// before serving.
func (s *Server) RequireToken(v auth.Validator) {
	s.validator = v
}

func (s *Server) authorize(c *gin.Context) {
	if s.validator == nil {
		c.Next()
		return
	}
	if err := auth.CheckHeader(s.validator, c.GetHeader("Authorization")); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	s.router.GET("/metrics", s.authorize, gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		snap := s.snapshot()
		status := http.StatusOK
		if !snap.Connected {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   snap.Connected,
			"service": s.ID,
		})
	})

	s.router.GET("/status", s.authorize, func(c *gin.Context) {
		snap := s.snapshot()
		c.JSON(http.StatusOK, gin.H{
			"service":   s.ID,
			"connected": snap.Connected,
			"queued":    snap.Queued,
			"uptime":    time.Since(s.Started).String(),
		})
	})
}

func (s *Server) snapshot() session.Snapshot {
	if s.source == nil {
		return session.Snapshot{}
	}
	return s.source.Snapshot()
}

// ListenAndServe binds Addr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve blocks on ln. It returns nil after a clean Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	if s.http != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrAlreadyServing
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.http = srv
	s.mu.Unlock()

	log.Info().Str("service", s.ID).Str("addr", ln.Addr().String()).Msg("admin server listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
