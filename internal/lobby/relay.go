package lobby

import (
	"errors"
	"log/slog"

	"github.com/Tyrowin/lobby-relay/internal/metrics"
)

// Relay delivers messages to sessions on a best-effort basis. A member whose
// queue is closed or full is skipped; nothing is reported back to the
// sender or the other members.
type Relay struct {
	log     *slog.Logger
	metrics *metrics.Lobby
}

// NewRelay creates a relay that logs and counts failed deliveries.
func NewRelay(opts Options) *Relay {
	opts = opts.withDefaults()
	return &Relay{log: opts.Logger, metrics: opts.Metrics}
}

// Broadcast queues msg for every member except exclude and returns how many
// members accepted it. exclude may be nil.
func (r *Relay) Broadcast(members []*Session, msg string, exclude *Session) int {
	delivered := 0
	for _, m := range members {
		if exclude != nil && m.id == exclude.id {
			continue
		}
		if r.SendDirect(m, msg) {
			delivered++
		}
	}
	r.metrics.Relayed(delivered)
	return delivered
}

// SendDirect queues msg for one session. A nil or closed session is a
// logged no-op.
func (r *Relay) SendDirect(s *Session, msg string) bool {
	if s == nil {
		return false
	}

	err := s.Send(msg)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrQueueFull):
		r.metrics.SendFailed("queue_full")
		r.log.Warn("dropping message for slow client", "addr", s.addr, "session", s.id)
	default:
		r.metrics.SendFailed("closed")
		r.log.Debug("skipping closed client", "addr", s.addr, "session", s.id, "err", err)
	}
	return false
}
