package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSchedulerTicks(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			if ticks.Add(1) == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not tick")
	}
	require.GreaterOrEqual(t, ticks.Load(), int32(3))
}

func TestSchedulerPauseSuppressesTicks(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	s.Pause()
	s.Pause()
	require.True(t, s.Paused())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	go func() {
		_ = s.Run(ctx, func(context.Context, time.Time) error {
			ticks.Add(1)
			return nil
		})
	}()

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, ticks.Load())

	s.Resume()
	require.False(t, s.Paused())
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC)
	require.Equal(t, time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC), s.nextTick(now))
}

func TestQueueDeferrerDrain(t *testing.T) {
	var q QueueDeferrer
	var order []int
	require.NoError(t, q.After(time.Millisecond, func(context.Context) { order = append(order, 1) }))
	require.NoError(t, q.After(0, func(context.Context) {
		order = append(order, 2)
		_ = q.After(0, func(context.Context) { order = append(order, 3) })
	}))
	require.Equal(t, 2, q.Pending())

	require.NoError(t, q.Drain(context.Background(), true))
	require.Equal(t, []int{1, 2, 3}, order)
	require.Zero(t, q.Pending())
}

func TestJobDeferrerRunsOnce(t *testing.T) {
	d, err := NewJobDeferrer(context.Background(), zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = d.Shutdown() }()

	var runs atomic.Int32
	require.NoError(t, d.After(10*time.Millisecond, func(context.Context) { runs.Add(1) }))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(1), runs.Load())
}
