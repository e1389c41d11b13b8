// Package dispatch routes job descriptors to registered handlers while
// serializing execution per logical queue. One store never runs two jobs at
// once; distinct stores proceed in parallel.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

// Handler executes one job pattern. The data it receives is the raw payload
// blob of the descriptor.
type Handler func(ctx context.Context, job jobs.Descriptor) (jobs.Result, error)

// Dispatcher maps patterns to handlers and owns the per-queue locks.
type Dispatcher struct {
	logger   *slog.Logger
	handlers map[string]Handler

	mu     sync.Mutex
	queues map[string]*sync.Mutex
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string]Handler),
		queues:   make(map[string]*sync.Mutex),
	}
}

// Register binds a handler to a pattern. Later registrations win; callers
// register everything at startup before the first Dispatch.
func (d *Dispatcher) Register(pattern string, handler Handler) {
	d.handlers[pattern] = handler
}

// Dispatch runs the handler for the job's pattern under its queue lock and
// always returns a result envelope. Handler errors and panics become error
// envelopes rather than propagating to the transport layer.
func (d *Dispatcher) Dispatch(ctx context.Context, job jobs.Descriptor) jobs.Result {
	handler, ok := d.handlers[job.Pattern]
	if !ok {
		d.logger.Error("unknown pattern", "pattern", job.Pattern, "job_id", job.JobID)
		return jobs.Result{
			Status:  jobs.StatusError,
			Message: fmt.Sprintf("unknown pattern: %s", job.Pattern),
		}
	}

	queue := d.queueLock(job.Queue())
	queue.Lock()
	defer queue.Unlock()

	d.logger.Info("job started", "pattern", job.Pattern, "job_id", job.JobID, "store", job.Store)
	result, err := d.run(ctx, handler, job)
	if err != nil {
		d.logger.Error("job failed", "pattern", job.Pattern, "job_id", job.JobID, "error", err)
		return jobs.Result{Status: jobs.StatusError, Message: err.Error()}
	}
	d.logger.Info("job finished", "pattern", job.Pattern, "job_id", job.JobID, "status", result.Status)
	return result
}

// run isolates the handler call so a panic unwinds no further than here.
func (d *Dispatcher) run(ctx context.Context, handler Handler, job jobs.Descriptor) (result jobs.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (d *Dispatcher) queueLock(name string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.queues[name]
	if !ok {
		lock = &sync.Mutex{}
		d.queues[name] = lock
	}
	return lock
}
