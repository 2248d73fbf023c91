package lobby

import "time"

// beginPing records that a ping was sent to this session at now. A second
// go_ping_me before the PONG restarts the measurement.
func (s *Session) beginPing(now time.Time) {
	s.stateMu.Lock()
	s.pingSent = now
	s.pinging = true
	s.stateMu.Unlock()
}

// completePing consumes the outstanding ping and stores the round trip. It
// returns false when no ping was outstanding.
func (s *Session) completePing(now time.Time) (time.Duration, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if !s.pinging {
		return 0, false
	}
	rtt := now.Sub(s.pingSent)
	if rtt < 0 {
		rtt = 0
	}
	s.pinging = false
	s.latency = rtt
	s.measured = true
	return rtt, true
}
