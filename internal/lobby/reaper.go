package lobby

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically evicts empty and idle rooms from a directory.
type Reaper struct {
	dir      *Directory
	interval time.Duration
	idle     time.Duration
	clock    func() time.Time
	log      *slog.Logger
}

// NewReaper creates a reaper for dir using the interval and idle timeout
// from opts.
func NewReaper(dir *Directory, opts Options) *Reaper {
	opts = opts.withDefaults()
	return &Reaper{
		dir:      dir,
		interval: opts.ReapInterval,
		idle:     opts.IdleTimeout,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reaper started", "interval", r.interval, "idle_timeout", r.idle)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one eviction cycle against a single reading of the clock and
// returns the evicted room ids.
func (r *Reaper) Sweep() []RoomID {
	now := r.clock()
	evicted := r.dir.Sweep(now, r.idle)
	if len(evicted) > 0 {
		r.log.Debug("reaper cycle", "evicted", len(evicted), "remaining", r.dir.Len())
	}
	return evicted
}
