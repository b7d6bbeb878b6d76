// Package presence derives online/offline status from heartbeat recency.
package presence

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultSweepInterval = 10 * time.Second
	defaultOnlineWindow  = 60 * time.Second
)

// UserCounter is the storage collaborator: it counts active accounts whose
// last heartbeat falls inside the trailing window.
type UserCounter interface {
	CountOnline(window time.Duration) (int64, error)
}

// Sweeper periodically samples the online-user count and logs transitions.
// It holds no registry state; the heartbeat timestamps in storage are the
// only input.
type Sweeper struct {
	store     UserCounter
	interval  time.Duration
	window    time.Duration
	lastCount int64
}

func NewSweeper(store UserCounter, interval, window time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if window <= 0 {
		window = defaultOnlineWindow
	}
	return &Sweeper{store: store, interval: interval, window: window, lastCount: -1}
}

// Run loops until ctx is cancelled. Intended to be started as a detached
// goroutine at process startup.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			slog.Info("Presence sweeper stopped")
			return
		}
	}
}

func (s *Sweeper) sweep() {
	count, err := s.store.CountOnline(s.window)
	if err != nil {
		slog.Error("Presence sweep failed", "error", err)
		return
	}
	if count != s.lastCount {
		slog.Info("Online user count changed", "count", count, "previous", s.lastCount)
		s.lastCount = count
	}
}
