// Package server tracks live transport connections for the lobby via the hub
// type so shutdown can close them and wait for their goroutines.
package server

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/lobby-relay/internal/lobby"
	"github.com/Tyrowin/lobby-relay/internal/metrics"
)

// hub owns the set of connected sessions across both transports. Each
// session maps to the closer of its underlying connection.
type hub struct {
	mu      sync.Mutex
	conns   map[*lobby.Session]io.Closer
	closing bool
	wg      sync.WaitGroup

	log     *slog.Logger
	metrics *metrics.Lobby
}

func newHub(logger *slog.Logger, m *metrics.Lobby) *hub {
	return &hub{
		conns:   make(map[*lobby.Session]io.Closer),
		log:     logger,
		metrics: m,
	}
}

// register adds a session and reserves a goroutine slot for its
// connection. It returns false once shutdown has begun.
func (h *hub) register(s *lobby.Session, conn io.Closer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return false
	}
	h.conns[s] = conn
	h.wg.Add(1)
	h.metrics.SessionOpened()
	h.log.Info("client registered", "addr", s.Addr(), "session", s.ID(), "clients", len(h.conns))
	return true
}

// unregister releases a session registered earlier.
func (h *hub) unregister(s *lobby.Session) {
	h.mu.Lock()
	_, ok := h.conns[s]
	if ok {
		delete(h.conns, s)
	}
	count := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.SessionClosed()
	h.log.Info("client unregistered", "addr", s.Addr(), "session", s.ID(), "clients", count)
	h.wg.Done()
}

// count returns the number of live sessions.
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// shutdown closes every connection and waits for their handlers to finish,
// or until timeout.
func (h *hub) shutdown(timeout time.Duration) error {
	h.mu.Lock()
	h.closing = true
	conns := make([]io.Closer, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.log.Info("shutting down client connections", "clients", len(conns))
	for _, c := range conns {
		if err := c.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("error closing client connection", "err", err)
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("client connections closed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("shutdown timeout reached, some connections may still be running")
		return context.DeadlineExceeded
	}
}
