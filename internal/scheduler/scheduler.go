package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval while the scheduler is running.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives the periodic refresh. It can be paused while the display
// is hidden; a paused scheduler fires no ticks until Resume.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	paused bool
	wake   chan struct{}
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		wake:   make(chan struct{}, 1),
	}
}

// Pause stops tick delivery. Idempotent.
func (s *Scheduler) Pause() {
	s.setPaused(true)
}

// Resume restarts tick delivery with a full interval before the next tick.
func (s *Scheduler) Resume() {
	s.setPaused(false)
}

// Paused reports whether ticks are suspended.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) setPaused(v bool) {
	s.mu.Lock()
	changed := s.paused != v
	s.paused = v
	s.mu.Unlock()

	if !changed {
		return
	}
	s.logger.Debug().Bool("paused", v).Msg("scheduler state changed")
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks, invoking the tick function at each interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		if s.Paused() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
			}
			next = s.nextTick(time.Now().UTC())
			continue
		}

		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		at := s.tickTime(next)
		s.logger.Debug().Time("at", at).Msg("executing scheduled tick")

		if err := tick(ctx, at); err != nil {
			s.logger.Error().Err(err).Time("at", at).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) tickTime(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
