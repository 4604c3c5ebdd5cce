package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"currencycheck/internal/cache"
	"currencycheck/internal/domain"
	"currencycheck/internal/fetcher"
)

// Timeframes lists the chart periods in days.
var Timeframes = []int{1, 7, 30, 90, 365}

// ValidTimeframe reports whether days is a supported chart period.
func ValidTimeframe(days int) bool {
	for _, d := range Timeframes {
		if d == days {
			return true
		}
	}
	return false
}

// HistorySummary describes a price series.
type HistorySummary struct {
	Start     time.Time
	End       time.Time
	First     float64
	Last      float64
	Min       float64
	Max       float64
	ChangePct float64
	Points    int
}

// Summarize computes period change and range. An empty series yields zero values.
func Summarize(points []domain.PricePoint) HistorySummary {
	if len(points) == 0 {
		return HistorySummary{}
	}
	s := HistorySummary{
		Start:  points[0].Time,
		End:    points[len(points)-1].Time,
		First:  points[0].Price,
		Last:   points[len(points)-1].Price,
		Min:    points[0].Price,
		Max:    points[0].Price,
		Points: len(points),
	}
	for _, p := range points[1:] {
		if p.Price < s.Min {
			s.Min = p.Price
		}
		if p.Price > s.Max {
			s.Max = p.Price
		}
	}
	if s.First != 0 {
		s.ChangePct = (s.Last - s.First) / s.First * 100
	}
	return s
}

// History serves price-history series, caching them briefly.
type History struct {
	fetcher fetcher.HistoryFetcher
	cache   *cache.History
	logger  zerolog.Logger
}

// NewHistory wires a history fetcher with an optional cache.
func NewHistory(f fetcher.HistoryFetcher, c *cache.History, logger zerolog.Logger) *History {
	return &History{fetcher: f, cache: c, logger: logger.With().Str("component", "history").Logger()}
}

// Fetch returns the series for id over days, reporting whether it came from cache.
func (h *History) Fetch(ctx context.Context, id string, days int) ([]domain.PricePoint, bool, error) {
	if !ValidTimeframe(days) {
		return nil, false, fmt.Errorf("unsupported timeframe %d days (want one of %v)", days, Timeframes)
	}
	if h.cache != nil {
		if points, ok := h.cache.Get(id, days); ok {
			h.logger.Debug().Str("currency", id).Int("days", days).Msg("history cache hit")
			return points, true, nil
		}
	}

	points, err := h.fetcher.FetchHistory(ctx, id, days)
	if err != nil {
		return nil, false, fmt.Errorf("fetch history for %s: %w", id, err)
	}
	if h.cache != nil {
		h.cache.Set(id, days, points)
	}
	return points, false, nil
}
