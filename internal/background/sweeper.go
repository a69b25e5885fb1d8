package background

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sweepable is any expiring store that can evict entries older than its TTL.
type Sweepable interface {
	Sweep(now time.Time) int
}

type target struct {
	name  string
	store Sweepable
}

// Sweeper periodically evicts expired entries from every registered store.
// It exists only to bound memory growth: correctness relies on read-time
// expiry checks in the stores themselves, so skipping a cycle is harmless.
type Sweeper struct {
	targets  []target
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Register adds a store under a name used in log output. Call before Start.
func (s *Sweeper) Register(name string, store Sweepable) {
	s.targets = append(s.targets, target{name: name, store: store})
}

// Start begins the periodic sweep loop. It blocks until Stop is called or
// ctx is cancelled, so run it on its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.stopCh:
			s.logger.Info("sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("sweeper context cancelled")
			return
		}
	}
}

// runSweep sweeps each target in turn. A panic in one store is logged and
// must not block the remaining stores or the next cycle.
func (s *Sweeper) runSweep() {
	now := time.Now()
	for _, t := range s.targets {
		if removed, err := s.sweepOne(t, now); err != nil {
			s.logger.Error("store sweep failed",
				slog.String("store", t.name),
				slog.Any("error", err))
		} else if removed > 0 {
			s.logger.Info("store sweep completed",
				slog.String("store", t.name),
				slog.Int("removed", removed))
		}
	}
}

func (s *Sweeper) sweepOne(t target, now time.Time) (removed int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sweep panicked: %v", p)
		}
	}()
	return t.store.Sweep(now), nil
}

// Stop signals the sweep loop to exit.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
