package sync

import (
	"context"
	"sync"
	"time"

	"github.com/keeva/tunepractice/internal/util"
)

const (
	defaultSyncInterval = 5 * time.Minute
	maxFailureBackoff   = 8 // interval multiplier cap after repeated failures
)

// Daemon runs sync cycles in the background on a fixed interval. Cycles
// run on their own goroutine so local reads and writes stay responsive
// while a cycle is in flight; a failed cycle backs off by skipping ticks
// instead of hammering the remote.
type Daemon struct {
	engine   *Engine
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDaemon wraps an engine in a periodic runner. interval <= 0 uses the
// default.
func NewDaemon(engine *Engine, interval time.Duration) *Daemon {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		engine:   engine,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs an immediate first cycle, then ticks until ctx is cancelled.
// Blocks until shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	util.InfoLog("Sync daemon starting (interval %s)", d.interval)

	d.wg.Add(1)
	go d.runLoop()

	select {
	case <-ctx.Done():
		util.InfoLog("Shutdown signal received")
		d.Stop()
		return nil
	case <-d.ctx.Done():
		return nil
	}
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (d *Daemon) Stop() {
	d.cancel()
	d.wg.Wait()
	util.InfoLog("Sync daemon stopped")
}

func (d *Daemon) runLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Consecutive failures skip that many ticks, capped
	failures := 0
	skip := 0

	d.runCycle(&failures)

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if skip > 0 {
				skip--
				continue
			}
			d.runCycle(&failures)
			if failures > 0 {
				skip = failures
				if skip > maxFailureBackoff {
					skip = maxFailureBackoff
				}
			}
		}
	}
}

func (d *Daemon) runCycle(failures *int) {
	if err := d.engine.Run(d.ctx); err != nil {
		if d.ctx.Err() != nil {
			return
		}
		*failures++
		util.WarnLog("Sync cycle failed (%d consecutive): %v", *failures, err)
		return
	}
	*failures = 0
}
