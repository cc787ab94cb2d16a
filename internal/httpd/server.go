// Package httpd serves the daemon's two HTTP surfaces: the platform webhook
// (verification handshake plus inbound event delivery) and the local admin
// API used by wabotctl and wabottui.
package httpd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/wabot/internal/bus"
	"github.com/matheus3301/wabot/internal/config"
	"github.com/matheus3301/wabot/internal/status"
	"github.com/matheus3301/wabot/internal/store"
	"github.com/matheus3301/wabot/internal/tracker"
	"go.uber.org/zap"
)

// Server wraps the gin engine with graceful shutdown helpers.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	db         *store.DB
	tracker    *tracker.Tracker
	machine    *status.Machine
	bus        *bus.Bus
	logger     *zap.Logger
	startedAt  time.Time
}

// New constructs the HTTP server with routes registered. machine may be nil
// (tests).
func New(cfg *config.Config, db *store.DB, tr *tracker.Tracker, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		engine:    engine,
		db:        db,
		tracker:   tr,
		machine:   machine,
		bus:       b,
		logger:    logger,
		startedAt: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/webhook", s.verifyWebhook)
	s.engine.POST("/webhook", s.receiveWebhook)

	v1 := s.engine.Group("/v1")
	v1.GET("/status", s.getStatus)
	v1.GET("/conversations", s.listConversations)
	v1.GET("/conversations/:id/messages", s.listMessages)
	v1.POST("/conversations/:id/messages", s.sendMessage)
	v1.POST("/conversations/:id/read", s.markRead)
	v1.DELETE("/conversations/:id", s.deleteConversation)
	v1.GET("/search", s.search)
	v1.GET("/events", s.streamEvents)
}

// Handler exposes the engine for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.cfg.ListenAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown", zap.Error(err))
	}
}

func (s *Server) health(c *gin.Context) {
	state := "unknown"
	if s.machine != nil {
		state = string(s.machine.Current())
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
