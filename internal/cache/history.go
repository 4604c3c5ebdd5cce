package cache

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto"

	"currencycheck/internal/domain"
)

// History caches price-history series per (currency, days) for a short TTL.
type History struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewHistory creates a ristretto-backed history cache holding at most maxItems series.
func NewHistory(maxItems int64, ttl time.Duration) (*History, error) {
	if maxItems <= 0 {
		maxItems = 128
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10 * maxItems,
		MaxCost:            maxItems,
		BufferItems:        64,
		// each series costs 1, so MaxCost counts series
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create history cache: %w", err)
	}
	return &History{cache: c, ttl: ttl}, nil
}

// Get returns a copy of the cached series.
func (h *History) Get(id string, days int) ([]domain.PricePoint, bool) {
	v, ok := h.cache.Get(historyKey(id, days))
	if !ok {
		return nil, false
	}
	points, ok := v.([]domain.PricePoint)
	if !ok {
		return nil, false
	}
	out := make([]domain.PricePoint, len(points))
	copy(out, points)
	return out, true
}

// Set stores a series. Writes are buffered; call Wait to make them visible immediately.
func (h *History) Set(id string, days int, points []domain.PricePoint) {
	cp := make([]domain.PricePoint, len(points))
	copy(cp, points)
	h.cache.SetWithTTL(historyKey(id, days), cp, 1, h.ttl)
}

// Wait blocks until buffered writes are applied.
func (h *History) Wait() { h.cache.Wait() }

// Close releases the cache goroutines.
func (h *History) Close() { h.cache.Close() }

func historyKey(id string, days int) string { return id + ":" + strconv.Itoa(days) }
