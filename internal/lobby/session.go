package lobby

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSendQueueSize bounds the outbound queue of a session.
const DefaultSendQueueSize = 256

// Session is one connected client, independent of the transport carrying
// it. Sessions are compared by their id, which is assigned once at creation.
//
// The outbound queue is drained by exactly one transport writer, so relay
// fan-out and direct replies reach the socket one at a time.
type Session struct {
	id   string
	addr string

	mu     sync.Mutex
	send   chan string
	closed bool

	stateMu  sync.Mutex
	nickname string
	latency  time.Duration
	measured bool
	pingSent time.Time
	pinging  bool
}

// NewSession creates a session for a client at addr with an outbound queue
// holding up to queueSize messages.
func NewSession(addr string, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	return &Session{
		id:   uuid.NewString(),
		addr: addr,
		send: make(chan string, queueSize),
	}
}

// ID returns the stable session identifier.
func (s *Session) ID() string { return s.id }

// Addr returns the remote address the session was accepted from.
func (s *Session) Addr() string { return s.addr }

// Outbound returns the queue the transport writer drains. It is closed when
// the session closes.
func (s *Session) Outbound() <-chan string { return s.send }

// Send queues msg without blocking. A full queue drops the message.
func (s *Session) Send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSendFailed
	}

	select {
	case s.send <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close marks the session closed and closes its outbound queue. It reports
// whether this call performed the close.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.send)
	return true
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Nickname returns the display name, empty until the client sets one.
func (s *Session) Nickname() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.nickname
}

func (s *Session) setNickname(name string) {
	s.stateMu.Lock()
	s.nickname = name
	s.stateMu.Unlock()
}

// Latency returns the last measured round trip and whether one has been
// measured at all.
func (s *Session) Latency() (time.Duration, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.latency, s.measured
}
