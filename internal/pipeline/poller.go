// Package pipeline holds the periodic machinery behind the board: cancellable
// pollers, the errgroup orchestrator that runs them, and the cron-driven
// board archive job.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task is one unit of periodic work. ctx carries the per-tick deadline.
type Task func(ctx context.Context) error

// PollerStats are cumulative counters for a Poller.
type PollerStats struct {
	Runs     int64
	Failures int64
	Skipped  int64
}

// Poller runs a Task immediately and then on every tick of interval. A tick
// that fires while the previous run is still in flight is skipped and
// counted; the next tick is the retry for a failed run.
type Poller struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	task     Task
	logger   *slog.Logger

	busy     atomic.Bool
	runs     atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
	inflight sync.WaitGroup
}

// NewPoller creates a Poller. timeout <= 0 means a tick may run for as long
// as ctx allows.
func NewPoller(name string, interval, timeout time.Duration, task Task, logger *slog.Logger) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		timeout:  timeout,
		task:     task,
		logger:   logger.With(slog.String("poller", name)),
	}
}

// Name returns the poller's name.
func (p *Poller) Name() string { return p.name }

// Run ticks until ctx is cancelled, then waits for the in-flight run and
// returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	defer p.inflight.Wait()

	p.fire(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.DebugContext(ctx, "poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.fire(ctx)
		}
	}
}

func (p *Poller) fire(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		n := p.skipped.Add(1)
		p.logger.DebugContext(ctx, "tick skipped, previous run in flight", slog.Int64("skipped", n))
		return
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer p.busy.Store(false)
		p.runOnce(ctx)
	}()
}

func (p *Poller) runOnce(ctx context.Context) {
	tctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err := p.task(tctx)
	p.runs.Add(1)
	if err == nil {
		return
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}

	p.failures.Add(1)
	p.logger.WarnContext(ctx, "poll failed",
		slog.String("error", err.Error()),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// Stats returns a snapshot of the poller's counters.
func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Runs:     p.runs.Load(),
		Failures: p.failures.Load(),
		Skipped:  p.skipped.Load(),
	}
}
