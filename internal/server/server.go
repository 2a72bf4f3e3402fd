// Package server exposes the services as a small JSON API.
//
// Every service call is rendered from its fallback.Result: Success and
// Degraded answer 200, invalid requests 400 and exhausted chains 503 with
// the unavailable message. Handlers never panic the process; gin's recovery
// middleware catches what the chains do not.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"codeberg.org/snonux/sahachari/internal/app"
)

const shutdownTimeout = 10 * time.Second

// Options controls the HTTP server.
type Options struct {
	// Debug enables gin's debug mode and route listing.
	Debug bool
}

// Server serves the API for one service container.
type Server struct {
	svc    *app.Services
	logger *zap.Logger
	engine *gin.Engine
}

// New builds the router. Nothing listens until Run.
func New(svc *app.Services, opts Options) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{svc: svc, logger: svc.Logger().Named("http"), engine: gin.New()}
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestID())
	s.engine.Use(requestLogger(s.logger))
	s.engine.Use(svc.Metrics().Middleware())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", s.health)
	r.GET("/metrics", s.svc.Metrics().Handler())

	api := r.Group("/api/v1")
	api.GET("/status", s.status)
	api.POST("/translate", s.translate)
	api.POST("/detect", s.detect)
	api.POST("/speech", s.speech)
	api.POST("/vision", s.vision)
	api.POST("/recipes", s.recipes)
	api.GET("/recipes/suggest", s.suggest)

	records := api.Group("/records")
	records.GET("/:collection", s.listRecords)
	records.GET("/:collection/:key", s.getRecord)
	records.PUT("/:collection/:key", s.putRecord)
	records.DELETE("/:collection/:key", s.deleteRecord)
}

// Handler returns the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown", zap.Error(err))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
