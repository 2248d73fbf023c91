package lobby

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testLobby struct {
	clock      *fakeClock
	relay      *Relay
	dir        *Directory
	dispatcher *Dispatcher
	reaper     *Reaper
}

func newTestLobby(t *testing.T) *testLobby {
	t.Helper()
	clock := newFakeClock()
	opts := Options{Clock: clock.Now}
	relay := NewRelay(opts)
	dir := NewDirectory(relay, opts)
	return &testLobby{
		clock:      clock,
		relay:      relay,
		dir:        dir,
		dispatcher: NewDispatcher(dir, relay, opts),
		reaper:     NewReaper(dir, opts),
	}
}

func (l *testLobby) send(t *testing.T, s *Session, line string) {
	t.Helper()
	_ = l.dispatcher.Handle(s, line)
}

// drain returns every message currently queued for s.
func drain(s *Session) []string {
	var out []string
	for {
		select {
		case msg, ok := <-s.Outbound():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func expectMessages(t *testing.T, s *Session, want ...string) {
	t.Helper()
	got := drain(s)
	if len(got) != len(want) {
		t.Fatalf("Expected messages %q for %s, got %q", want, s.Addr(), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Message %d for %s: expected %q, got %q", i, s.Addr(), want[i], got[i])
		}
	}
}

func expectNoMessage(t *testing.T, s *Session) {
	t.Helper()
	if got := drain(s); len(got) != 0 {
		t.Errorf("Expected no messages for %s, got %q", s.Addr(), got)
	}
}
