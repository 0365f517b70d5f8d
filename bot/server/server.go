package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liuran001/SongShare-Go/bot"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultEventsPath is where event callbacks are delivered when unconfigured.
const DefaultEventsPath = "/slack/events"

// Options configures the HTTP endpoint.
type Options struct {
	Addr       string
	EventsPath string
	Events     *EventsHandler
	Logger     bot.Logger
}

// Server exposes the event endpoint plus health and metrics.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger bot.Logger
}

// New builds the router. It does not start listening.
func New(opts Options) *Server {
	engine := gin.New()
	engine.Use(Recovery(opts.Logger))
	engine.Use(Correlation())
	engine.Use(AccessLog(opts.Logger))

	path := opts.EventsPath
	if path == "" {
		path = DefaultEventsPath
	}
	if opts.Events != nil {
		engine.POST(path, opts.Events.Handle)
	}
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		engine: engine,
		logger: opts.Logger,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if s.logger != nil {
		s.logger.Info("http server starting", "addr", ln.Addr().String())
	}
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
