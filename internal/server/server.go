// Package server exposes the tracker over HTTP: the counting pixel and the
// JSON statistics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/runnerr0/pixelcount/internal/logging"
	"github.com/runnerr0/pixelcount/internal/storage"
	"github.com/runnerr0/pixelcount/internal/tracker"
)

// Tracker is the subset of *tracker.Service the handlers need.
type Tracker interface {
	RecordView(ctx context.Context, domain, page string) error
	QueryStats(ctx context.Context, req tracker.StatsRequest) (*tracker.StatsSummary, error)
	DailyViews(ctx context.Context, req tracker.StatsRequest) ([]storage.DailyCount, error)
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	AccessLog       bool
	Logger          *logging.Logger
}

// Server is the HTTP front end.
type Server struct {
	tracker         Tracker
	logger          *logging.Logger
	engine          *gin.Engine
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// New builds a Server and registers its routes.
func New(t Tracker, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		tracker:         t,
		logger:          opts.Logger,
		shutdownTimeout: opts.ShutdownTimeout,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID())
	if opts.AccessLog {
		r.Use(accessLog(opts.Logger))
	}

	r.GET("/counter.gif", s.countView)
	r.GET("/stats.json", s.stats)
	r.GET("/daily.json", s.daily)
	r.GET("/healthz", s.health)

	s.engine = r
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: opts.ReadTimeout,
		ReadTimeout:       opts.ReadTimeout,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully, waiting up to the shutdown timeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Infof("listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
