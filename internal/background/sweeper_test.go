package background_test

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwhite-dev/punchcard/internal/background"
	"github.com/stretchr/testify/assert"
)

type countingStore struct {
	sweeps atomic.Int32
}

func (c *countingStore) Sweep(now time.Time) int {
	c.sweeps.Add(1)
	return 1
}

type panickyStore struct{}

func (panickyStore) Sweep(now time.Time) int {
	panic("store corrupted")
}

func TestSweeperSweepsAllTargets(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sweeper := background.NewSweeper(logger, 10*time.Millisecond)

	a := &countingStore{}
	b := &countingStore{}
	sweeper.Register("a", a)
	sweeper.Register("b", b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)

	assert.Eventually(t, func() bool {
		return a.sweeps.Load() >= 2 && b.sweeps.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	sweeper.Stop()
}

func TestSweeperPanicInOneStoreDoesNotBlockOthers(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sweeper := background.NewSweeper(logger, 10*time.Millisecond)

	healthy := &countingStore{}
	sweeper.Register("broken", panickyStore{})
	sweeper.Register("healthy", healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)

	// The healthy store keeps getting swept cycle after cycle
	assert.Eventually(t, func() bool {
		return healthy.sweeps.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	sweeper.Stop()
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sweeper := background.NewSweeper(logger, time.Millisecond)
	sweeper.Register("a", &countingStore{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not exit after context cancellation")
	}
}
