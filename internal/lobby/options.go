package lobby

import (
	"log/slog"
	"time"

	"github.com/Tyrowin/lobby-relay/internal/metrics"
)

const (
	// DefaultIdleTimeout is how long a room may go without traffic before
	// the reaper reclaims it.
	DefaultIdleTimeout = 230 * time.Second
	// DefaultReapInterval is the period of the reaper sweep.
	DefaultReapInterval = 3 * time.Second
)

// Options carries the collaborators shared by the lobby components. Zero
// values are replaced with defaults.
type Options struct {
	Logger       *slog.Logger
	Metrics      *metrics.Lobby
	Clock        func() time.Time
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = DefaultReapInterval
	}
	return o
}
