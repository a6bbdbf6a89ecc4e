package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-lived loop that returns when ctx is cancelled.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// Orchestrator runs a set of Runners together. The first runner to fail for a
// reason other than cancellation stops the others.
type Orchestrator struct {
	runners []Runner
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator over runners.
func NewOrchestrator(logger *slog.Logger, runners ...Runner) *Orchestrator {
	return &Orchestrator{runners: runners, logger: logger}
}

// Run blocks until every runner has returned. Cancellation of ctx is a clean
// stop and yields nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, r := range o.runners {
		g.Go(func() error {
			o.logger.DebugContext(gctx, "runner starting", slog.String("runner", r.Name()))
			err := r.Run(gctx)
			if err == nil || gctx.Err() != nil && errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("%s: %w", r.Name(), err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.ErrorContext(ctx, "orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

// Name returns the label.
func (f RunnerFunc) Name() string { return f.Label }

// Run calls Fn.
func (f RunnerFunc) Run(ctx context.Context) error { return f.Fn(ctx) }
