// Package server exposes a Runner over HTTP: the graph mutation and query
// API, the script compiler, and a websocket feed of graph events.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ravi-parthasarathy/artiffex/pkg/executor"
)

// Server serves one Runner.
type Server struct {
	runner *executor.Runner
	logger *slog.Logger
	engine *gin.Engine
	hub    *hub
	unsub  func()
}

// New builds the routes for r. Call Close when done to detach the event
// feed from the runner.
func New(r *executor.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{runner: r, logger: logger}
	s.hub = newHub(logger, s.snapshot)
	s.unsub = r.Subscribe(s.hub.publish)

	engine := gin.New()
	engine.Use(gin.Recovery(), s.logRequests())

	api := engine.Group("/api")
	{
		api.GET("/kinds", s.listKinds)
		api.POST("/compile", s.compile)
		api.GET("/graph", s.getGraph)
		api.GET("/graph.dot", s.getGraphDOT)
		api.GET("/events", s.hub.serve)

		nodes := api.Group("/nodes")
		{
			nodes.POST("", s.addNode)
			nodes.GET("/:id", s.getNode)
			nodes.PATCH("/:id", s.patchNode)
			nodes.DELETE("/:id", s.deleteNode)
			nodes.GET("/:id/descendants", s.descendants)
			nodes.POST("/:id/invalidate", s.invalidate)
			nodes.GET("/:id/prompt", s.previewPrompt)
			nodes.POST("/:id/run", s.runNode)
			nodes.POST("/:id/upload", s.upload)
			nodes.POST("/:id/enhance", s.enhance)
			nodes.POST("/:id/animation", s.animation)
			nodes.GET("/:id/output", s.output)
		}
	}
	s.engine = engine
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// Close detaches the event feed and disconnects websocket clients.
func (s *Server) Close() {
	s.unsub()
	s.hub.close()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
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
			"duration", time.Since(start))
	}
}
