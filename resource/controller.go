// Package resource bounds the pipeline's use of CPU workers, memory and
// storage bandwidth.
//
// A nil *Controller is valid everywhere and imposes no limits, so
// components accept an optional controller without nil checks.
package resource

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MaxWorkers caps concurrent compute workers. Defaults to GOMAXPROCS.
	MaxWorkers int

	// MemoryLimitBytes caps memory reserved through AcquireMemory, such as
	// the normalized embedding matrix of a graph build.
	MemoryLimitBytes int64

	// IOLimitBytesPerSec caps checkpoint and output throughput.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config.
type Controller struct {
	cfg Config

	workers *semaphore.Weighted
	memory  *semaphore.Weighted // nil without a memory limit
	used    atomic.Int64

	ioLimiter *rate.Limiter // nil without an I/O limit
}

// NewController creates a controller enforcing cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.GOMAXPROCS(0)
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(int64(cfg.MaxWorkers)),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memory = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Workers returns the worker budget.
func (c *Controller) Workers() int {
	if c == nil {
		return runtime.GOMAXPROCS(0)
	}

	return c.cfg.MaxWorkers
}

// AcquireWorker blocks until a worker slot is free or ctx is done.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}

	return c.workers.Acquire(ctx, 1)
}

// ReleaseWorker frees a slot taken by AcquireWorker.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}

	c.workers.Release(1)
}

// AcquireMemory reserves n bytes, blocking while the limit would be
// exceeded. A request larger than the limit fails once ctx is done.
func (c *Controller) AcquireMemory(ctx context.Context, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}

	if c.memory != nil {
		if err := c.memory.Acquire(ctx, n); err != nil {
			return err
		}
	}

	c.used.Add(n)

	return nil
}

// ReleaseMemory returns n bytes reserved by AcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}

	if c.memory != nil {
		c.memory.Release(n)
	}

	c.used.Add(-n)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}

	return c.used.Load()
}

// AcquireIO waits until n bytes may be transferred. Requests larger than
// one second of budget are charged in slices.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}

	return nil
}
