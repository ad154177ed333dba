package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/server/endpoint"
	"github.com/kbukum/assetflow/server/middleware"
)

const serviceName = "assetflow"

// Server serves the build output and the live-reload stream.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	hub        *Hub
	config     Config
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Server. Defaults are applied to cfg.
func New(cfg Config, log *logger.Logger) *Server {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	// Set Gin mode based on global zerolog level.
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine: gin.New(),
		config: cfg,
		log:    log.WithComponent("server"),
	}
	s.hub = NewHub(log)
	s.routes()

	handler := middleware.Chain(
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.NoCache(),
		middleware.RequestLogger(s.log),
	)(s.engine)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     handler,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
		IdleTimeout: time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/__health", endpoint.Health(serviceName, func(context.Context) map[string]any {
		return map[string]any{"reload_clients": s.hub.ClientCount()}
	}))
	s.engine.GET("/__version", endpoint.Version())
	if !s.config.NoReload {
		s.engine.GET("/__reload", func(c *gin.Context) { ServeSSE(s.hub, c.Writer, c.Request) })
		s.engine.GET("/__reload.js", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(reloadScript))
		})
	}
	s.engine.NoRoute(s.serveStatic)
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the full HTTP handler, middleware included.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go s.hub.Run()
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("Serving", logger.Fields("url", "http://"+listener.Addr().String(), "root", s.config.Root))
	return nil
}

// Stop closes reload streams and shuts the server down with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Debug("Server stopped")
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
