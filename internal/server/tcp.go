package server

import (
	"bufio"
	"errors"
	"net"
	"time"

	"github.com/Tyrowin/lobby-relay/internal/lobby"
)

const tcpWriteWait = 10 * time.Second

// serveTCP accepts line protocol clients until ln is closed.
func (s *Server) serveTCP(ln net.Listener) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.log.Warn("tcp accept error, retrying", "err", err, "backoff", backoff)
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0
		go s.handleTCP(conn)
	}
}

// handleTCP runs one TCP client: a writer goroutine draining the session
// queue and the reader loop feeding the dispatcher.
func (s *Server) handleTCP(conn net.Conn) {
	sess := lobby.NewSession(conn.RemoteAddr().String(), s.cfg.SendQueueSize)
	if !s.hub.register(sess, conn) {
		_ = conn.Close()
		return
	}
	defer s.hub.unregister(sess)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLines(conn, sess)
	}()

	s.readLines(conn, sess)

	s.dispatcher.Disconnect(sess)
	<-writerDone
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.Warn("error closing tcp connection", "addr", sess.Addr(), "err", err)
	}
}

func (s *Server) readLines(conn net.Conn, sess *lobby.Session) {
	limiter := newRateLimiter(s.cfg.RateLimit)
	scanner := bufio.NewScanner(conn)
	// The token limit is the larger of max and the initial buffer's capacity.
	maxLine := int(s.cfg.MaxLineSize)
	scanner.Buffer(make([]byte, 0, min(1024, maxLine)), maxLine)

	for scanner.Scan() {
		if !limiter.allow() {
			s.log.Warn("rate limit exceeded, discarding line", "addr", sess.Addr(),
				"burst", s.cfg.RateLimit.Burst, "interval", s.cfg.RateLimit.RefillInterval)
			continue
		}
		if err := s.dispatcher.Handle(sess, scanner.Text()); err != nil {
			s.log.Debug("command error", "addr", sess.Addr(), "err", err)
		}
	}

	err := scanner.Err()
	switch {
	case err == nil:
		s.log.Info("client disconnected", "addr", sess.Addr())
	case errors.Is(err, bufio.ErrTooLong):
		s.log.Warn("line exceeded maximum size", "addr", sess.Addr(), "max", s.cfg.MaxLineSize)
	case isExpectedCloseError(err):
		s.log.Info("client connection closed", "addr", sess.Addr(), "err", err)
	default:
		s.log.Warn("tcp read error", "addr", sess.Addr(), "err", err)
	}
}

// writeLines writes each queued message followed by a newline, flushing
// once the queue is momentarily empty. It returns when the session closes
// or a write fails; a failed write closes conn so the reader stops too.
func (s *Server) writeLines(conn net.Conn, sess *lobby.Session) {
	w := bufio.NewWriter(conn)
	out := sess.Outbound()

	for msg := range out {
		if err := conn.SetWriteDeadline(time.Now().Add(tcpWriteWait)); err != nil {
			s.log.Warn("error setting write deadline", "addr", sess.Addr(), "err", err)
		}
		// bufio errors are sticky and surface on Flush.
		_, _ = w.WriteString(msg)
		_ = w.WriteByte('\n')
		if len(out) > 0 {
			continue
		}
		if err := w.Flush(); err != nil {
			if !isExpectedCloseError(err) {
				s.log.Warn("error writing to client", "addr", sess.Addr(), "err", err)
			}
			_ = conn.Close()
			return
		}
	}
	_ = w.Flush()
}
