package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tecnovert/particl-coldstakepool/internal/config"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// Lifecycle owns process-wide shutdown signaling and the main ingest
// loop (Scheduler.CheckBlocks polled on a fixed tick), grounded on the
// teacher's signal.Notify(SIGINT, SIGTERM)-then-graceful-shutdown
// pattern (cmd/stratum/main.go) generalized to a polling loop instead
// of a blocking accept loop, since CheckBlocks is itself non-blocking.
type Lifecycle struct {
	Scheduler *Scheduler
	Log       Logger

	// PollInterval is how often CheckBlocks is polled when idle; the
	// original's equivalent loop sleeps a short fixed interval between
	// non-blocking ZMQ recv attempts.
	PollInterval time.Duration
	// LimitBlocksPerTick caps how many blocks CheckBlocks will advance
	// in a single hashblock-triggered catch-up; zero or less means
	// unlimited.
	LimitBlocksPerTick int

	running int32
}

func (l *Lifecycle) logf(format string, v ...interface{}) {
	if l.Log != nil {
		l.Log.Printf(format, v...)
	}
}

func (l *Lifecycle) isRunning() bool {
	return atomic.LoadInt32(&l.running) != 0
}

// Start runs the one-time master-mode startup reconciliation: if the
// pool was synced for a time in observer mode, pool_fees_detected
// (tracked at chain tip - blockbuffer as blocks are followed) can run
// ahead of pool_fees (tracked only as the pool itself dispatches
// transactions). On a master-mode start this replaces pool_fees with
// the larger, chain-observed figure and logs the correction, so an
// observer-to-master transition never under-reports fees already
// proven to exist on chain. It is a no-op in observer mode, and a
// no-op if pool_fees already covers pool_fees_detected.
func (l *Lifecycle) Start(ctx context.Context) error {
	if l.Scheduler.Mode != config.ModeMaster {
		return nil
	}
	c := l.Scheduler.Counters
	if c.PoolFeesDetected <= c.PoolFees {
		return nil
	}
	l.logf("replacing pool_fees with pool_fees_detected: %d, %d", c.PoolFees, c.PoolFeesDetected)
	if err := l.Scheduler.Store.Update(func(b *store.Batch) error {
		c.PoolFees = c.PoolFeesDetected
		return store.SaveCounters(b, c)
	}); err != nil {
		return fmt.Errorf("engine: reconciling pool_fees: %w", err)
	}
	return nil
}

// Run blocks until SIGINT/SIGTERM or ctx is cancelled, polling
// CheckBlocks every PollInterval. It returns nil on a clean shutdown,
// matching §5's "exit code 0 on clean shutdown"; a CheckBlocks error is
// logged and polling continues, so Run has no error return path of its
// own.
func (l *Lifecycle) Run(ctx context.Context) error {
	atomic.StoreInt32(&l.running, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(l.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			atomic.StoreInt32(&l.running, 0)
			return nil
		case <-sigCh:
			l.logf("shutdown signal received")
			atomic.StoreInt32(&l.running, 0)
			return nil
		case <-ticker.C:
			if err := l.Scheduler.CheckBlocks(ctx, l.LimitBlocksPerTick, l.isRunning); err != nil {
				l.logf("check_blocks error: %v", err)
			}
		}
	}
}

func (l *Lifecycle) pollInterval() time.Duration {
	if l.PollInterval > 0 {
		return l.PollInterval
	}
	return time.Second
}
