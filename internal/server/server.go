package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alphaminer/internal/config"
	"alphaminer/internal/logging"
	"alphaminer/internal/miner"
)

// SessionSource exposes the mining session for the status endpoint
type SessionSource interface {
	SessionSnapshot() *miner.Session
}

// Server is the status and metrics HTTP endpoint running alongside a mining
// run
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	session    SessionSource
}

// NewServer creates the status server
func NewServer(cfg config.ServerConfig, appEnv string, session SessionSource, registry *prometheus.Registry) *Server {
	if appEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:  cfg,
		router:  router,
		session: session,
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/api/v1/session", s.handleSession)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return s
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.WithField("addr", addr).Info("Status server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("status server failed: %w", err)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSession(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active session"})
		return
	}

	snapshot := s.session.SessionSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"id":              snapshot.ID,
		"started_at":      snapshot.StartedAt,
		"updated_at":      snapshot.UpdatedAt,
		"accepted":        snapshot.Accepted,
		"abandoned":       snapshot.Abandoned,
		"current_dataset": snapshot.CurrentDataset,
		"current_attempt": snapshot.CurrentAttempt,
	})
}
