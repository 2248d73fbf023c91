// Package server constructs and starts the lobby TCP and HTTP services with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Tyrowin/lobby-relay/internal/lobby"
	"github.com/Tyrowin/lobby-relay/internal/metrics"
)

// Server owns the room directory and the listeners feeding it.
type Server struct {
	cfg Config
	log *slog.Logger

	registry   *prometheus.Registry
	metrics    *metrics.Lobby
	directory  *lobby.Directory
	dispatcher *lobby.Dispatcher
	reaper     *lobby.Reaper
	hub        *hub
	upgrader   websocket.Upgrader

	mu         sync.Mutex
	tcpLn      net.Listener
	httpLn     net.Listener
	httpServer *http.Server
}

// New builds a server from cfg. Nothing listens until Listen is called.
func New(cfg *Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := cfg.sanitize()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	opts := lobby.Options{
		Logger:       logger,
		Metrics:      m,
		IdleTimeout:  c.IdleTimeout,
		ReapInterval: c.ReapInterval,
	}
	relay := lobby.NewRelay(opts)
	dir := lobby.NewDirectory(relay, opts)

	s := &Server{
		cfg:        c,
		log:        logger,
		registry:   registry,
		metrics:    m,
		directory:  dir,
		dispatcher: lobby.NewDispatcher(dir, relay, opts),
		reaper:     lobby.NewReaper(dir, opts),
		hub:        newHub(logger, m),
	}
	origins := newOriginPolicy(c.AllowedOrigins, logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.checkOrigin,
	}
	return s
}

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Listen binds the TCP and HTTP listeners.
func (s *Server) Listen() error {
	tcpLn, err := net.Listen("tcp", s.cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.cfg.TCPAddr, err)
	}
	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		_ = tcpLn.Close()
		return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
	}

	s.mu.Lock()
	s.tcpLn = tcpLn
	s.httpLn = httpLn
	s.httpServer = CreateServer(s.cfg.HTTPAddr, s.SetupRoutes())
	s.mu.Unlock()
	return nil
}

// TCPAddr returns the bound line protocol address, or nil before Listen.
func (s *Server) TCPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpLn == nil {
		return nil
	}
	return s.tcpLn.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil before Listen.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// Directory returns the room directory served by s.
func (s *Server) Directory() *lobby.Directory { return s.directory }

// Serve runs the listeners and the reaper until ctx is cancelled or a
// listener fails, then shuts everything down.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	tcpLn, httpLn, httpServer := s.tcpLn, s.httpLn, s.httpServer
	s.mu.Unlock()
	if tcpLn == nil {
		return errors.New("server: Serve called before Listen")
	}

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go s.reaper.Run(reaperCtx)

	errs := make(chan error, 2)
	go func() {
		s.log.Info("tcp lobby listening", "addr", tcpLn.Addr().String())
		if err := s.serveTCP(tcpLn); err != nil {
			errs <- fmt.Errorf("serve tcp: %w", err)
		}
	}()
	go func() {
		s.log.Info("http listening", "addr", httpLn.Addr().String())
		if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("serve http: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errs:
		s.log.Error("listener failed", "err", serveErr)
	}

	stopReaper()
	return errors.Join(serveErr, s.shutdown(tcpLn, httpServer))
}

// Run binds the listeners and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) shutdown(tcpLn net.Listener, httpServer *http.Server) error {
	s.log.Info("shutting down lobby server")

	if err := tcpLn.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.Warn("error closing tcp listener", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	httpErr := httpServer.Shutdown(ctx)
	if httpErr != nil {
		s.log.Warn("http server shutdown error", "err", httpErr)
	}

	hubErr := s.hub.shutdown(s.cfg.ShutdownTimeout)
	if err := errors.Join(httpErr, hubErr); err != nil {
		return err
	}
	s.log.Info("lobby server shutdown completed")
	return nil
}
