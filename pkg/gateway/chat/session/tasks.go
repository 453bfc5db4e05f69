package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// taskFailureRecorder is the slice of the metrics surface the coordinator
// needs. Nil-safe via the coordinator's own checks.
type taskFailureRecorder interface {
	RecordTaskFailure(task string)
}

// Coordinator runs fire-and-forget work (persistence, biomarker extraction,
// speech synthesis) without letting its failures or latency reach the reply
// path. Every task gets the coordinator's context; teardown cancels them
// all and waits.
type Coordinator struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	metrics taskFailureRecorder
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator scoped to parent.
func NewCoordinator(parent context.Context, logger *slog.Logger, metrics taskFailureRecorder) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{ctx: ctx, cancel: cancel, logger: logger, metrics: metrics}
}

// Fire schedules fn without blocking. Panics and errors are logged and
// contained; cancellation during teardown is not treated as a failure.
func (c *Coordinator) Fire(name string, fn func(ctx context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if v := recover(); v != nil {
				c.logger.Error("background task panic", "task", name, "panic", v)
				if c.metrics != nil {
					c.metrics.RecordTaskFailure(name)
				}
			}
		}()
		if err := fn(c.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Warn("background task failed", "task", name, "error", err)
			if c.metrics != nil {
				c.metrics.RecordTaskFailure(name)
			}
		}
	}()
}

// Shutdown cancels every outstanding task and waits for all of them to
// finish. Safe to call more than once.
func (c *Coordinator) Shutdown() {
	c.cancel()
	c.wg.Wait()
}
