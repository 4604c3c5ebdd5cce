package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Deferrer runs fn once after delay without blocking the caller.
type Deferrer interface {
	After(delay time.Duration, fn func(ctx context.Context)) error
}

// JobDeferrer schedules one-time gocron jobs bound to a parent context.
type JobDeferrer struct {
	ctx    context.Context
	sched  gocron.Scheduler
	logger zerolog.Logger
}

// NewJobDeferrer starts a gocron scheduler whose jobs receive ctx.
func NewJobDeferrer(ctx context.Context, logger zerolog.Logger) (*JobDeferrer, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create deferred scheduler: %w", err)
	}
	sched.Start()
	return &JobDeferrer{
		ctx:    ctx,
		sched:  sched,
		logger: logger.With().Str("component", "deferrer").Logger(),
	}, nil
}

// After registers fn as a one-time job starting delay from now.
func (d *JobDeferrer) After(delay time.Duration, fn func(ctx context.Context)) error {
	ctx := d.ctx
	_, err := d.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(delay))),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule deferred job: %w", err)
	}
	d.logger.Debug().Dur("delay", delay).Msg("deferred job scheduled")
	return nil
}

// Shutdown waits for running jobs and stops the scheduler.
func (d *JobDeferrer) Shutdown() error {
	return d.sched.Shutdown()
}

// QueueDeferrer collects deferred work until Drain. Used by one-shot commands
// that must finish the deferred wave before printing.
type QueueDeferrer struct {
	mu    sync.Mutex
	queue []queued
}

type queued struct {
	delay time.Duration
	fn    func(ctx context.Context)
}

// After queues fn.
func (q *QueueDeferrer) After(delay time.Duration, fn func(ctx context.Context)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, queued{delay: delay, fn: fn})
	return nil
}

// Pending returns the number of queued functions.
func (q *QueueDeferrer) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Drain runs queued functions in order, honouring each delay unless wait is
// false. Work queued while draining is run as well.
func (q *QueueDeferrer) Drain(ctx context.Context, wait bool) error {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.mu.Unlock()
			return nil
		}
		job := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		if wait && job.delay > 0 {
			timer := time.NewTimer(job.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		job.fn(ctx)
	}
}

var (
	_ Deferrer = (*JobDeferrer)(nil)
	_ Deferrer = (*QueueDeferrer)(nil)
)
