package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"currencycheck/internal/cache"
	"currencycheck/internal/domain"
)

type countingHistory struct {
	calls  atomic.Int32
	points []domain.PricePoint
}

func (c *countingHistory) FetchHistory(_ context.Context, _ string, _ int) ([]domain.PricePoint, error) {
	c.calls.Add(1)
	return c.points, nil
}

func TestHistoryFetchCachesSeries(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	src := &countingHistory{points: []domain.PricePoint{
		{Time: start, Price: 100},
		{Time: start.Add(time.Hour), Price: 80},
		{Time: start.Add(2 * time.Hour), Price: 120},
	}}
	hc, err := cache.NewHistory(100, time.Minute)
	require.NoError(t, err)
	defer hc.Close()

	svc := NewHistory(src, hc, zerolog.Nop())
	ctx := context.Background()

	points, cached, err := svc.Fetch(ctx, "bitcoin", 7)
	require.NoError(t, err)
	require.False(t, cached)
	require.Len(t, points, 3)
	hc.Wait()

	_, cached, err = svc.Fetch(ctx, "bitcoin", 7)
	require.NoError(t, err)
	require.True(t, cached)
	require.EqualValues(t, 1, src.calls.Load())

	_, _, err = svc.Fetch(ctx, "bitcoin", 14)
	require.Error(t, err)
	require.EqualValues(t, 1, src.calls.Load())
}

func TestSummarize(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	s := Summarize([]domain.PricePoint{
		{Time: start, Price: 100},
		{Time: start.Add(time.Hour), Price: 80},
		{Time: start.Add(2 * time.Hour), Price: 120},
	})
	require.Equal(t, 3, s.Points)
	require.InDelta(t, 80, s.Min, 1e-9)
	require.InDelta(t, 120, s.Max, 1e-9)
	require.InDelta(t, 20, s.ChangePct, 1e-9)
	require.Equal(t, start, s.Start)

	require.Zero(t, Summarize(nil).Points)
}
