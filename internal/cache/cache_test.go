package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"currencycheck/internal/domain"
)

func newTestTiered() *Tiered {
	return NewTiered(map[domain.Class]time.Duration{
		domain.ClassCrypto: 30 * time.Second,
		domain.ClassFiat:   5 * time.Minute,
	})
}

func TestTieredInvalidWhenEmpty(t *testing.T) {
	c := newTestTiered()
	for _, class := range domain.Classes {
		require.False(t, c.IsValid(class, time.Now()))
		_, ok := c.Get(class)
		require.False(t, ok)
	}
}

func TestTieredValidityBoundary(t *testing.T) {
	c := newTestTiered()
	t0 := time.UnixMilli(0)
	c.Store(domain.ClassCrypto, []domain.Quote{{ID: "bitcoin", Price: 1}}, t0)

	require.True(t, c.IsValid(domain.ClassCrypto, time.UnixMilli(29999)))
	require.False(t, c.IsValid(domain.ClassCrypto, time.UnixMilli(30000)))
	require.False(t, c.IsValid(domain.ClassCrypto, time.UnixMilli(30001)))
	require.False(t, c.IsValid(domain.ClassFiat, time.UnixMilli(1)), "fiat was never stored")
}

func TestTieredValidityIsPerClass(t *testing.T) {
	c := newTestTiered()
	t0 := time.Unix(1_700_000_000, 0)
	c.Store(domain.ClassCrypto, nil, t0)
	c.Store(domain.ClassFiat, nil, t0)

	later := t0.Add(time.Minute)
	require.False(t, c.IsValid(domain.ClassCrypto, later))
	require.True(t, c.IsValid(domain.ClassFiat, later))
}

func TestTieredStoreResetsTimestamp(t *testing.T) {
	c := newTestTiered()
	t0 := time.Unix(1000, 0)
	c.Store(domain.ClassCrypto, []domain.Quote{{ID: "bitcoin", Price: 1}}, t0)

	t1 := t0.Add(45 * time.Second)
	require.False(t, c.IsValid(domain.ClassCrypto, t1))

	c.Store(domain.ClassCrypto, []domain.Quote{{ID: "bitcoin", Price: 2}}, t1)
	set, ok := c.Get(domain.ClassCrypto)
	require.True(t, ok)
	require.Equal(t, t1, set.FetchedAt)
	require.Equal(t, 30*time.Second, set.Validity)
	require.True(t, c.IsValid(domain.ClassCrypto, t1.Add(time.Second)))
}

func TestTieredPatchKeepsTimestamp(t *testing.T) {
	c := newTestTiered()
	t0 := time.Unix(2000, 0)
	c.Store(domain.ClassCrypto, []domain.Quote{
		{ID: "bitcoin", Price: 1},
		{ID: "aave", Price: 0},
	}, t0)

	n := c.Patch(domain.ClassCrypto, []domain.Quote{{ID: "aave", Price: 95, Change24h: 1.5}, {ID: "ghost", Price: 7}})
	require.Equal(t, 1, n)

	set, _ := c.Get(domain.ClassCrypto)
	require.Equal(t, t0, set.FetchedAt)
	require.Len(t, set.Quotes, 2)
	q, ok := set.Quote("aave")
	require.True(t, ok)
	require.InDelta(t, 95, q.Price, 1e-9)
	_, ok = set.Quote("ghost")
	require.False(t, ok)

	require.Zero(t, c.Patch(domain.ClassFiat, []domain.Quote{{ID: "EUR", Price: 1}}), "patching an absent set is a no-op")
}

func TestTieredGetReturnsCopy(t *testing.T) {
	c := newTestTiered()
	c.Store(domain.ClassFiat, []domain.Quote{{ID: "EUR", Price: 1.08}}, time.Now())

	set, _ := c.Get(domain.ClassFiat)
	set.Quotes[0].Price = 99

	again, _ := c.Get(domain.ClassFiat)
	require.InDelta(t, 1.08, again.Quotes[0].Price, 1e-9)
}

func TestHistorySetAndGet(t *testing.T) {
	h, err := NewHistory(16, time.Minute)
	require.NoError(t, err)
	defer h.Close()

	points := []domain.PricePoint{{Time: time.Unix(1, 0), Price: 10}, {Time: time.Unix(2, 0), Price: 11}}
	h.Set("bitcoin", 7, points)
	h.Wait()

	got, ok := h.Get("bitcoin", 7)
	require.True(t, ok)
	require.Equal(t, points, got)

	_, ok = h.Get("bitcoin", 30)
	require.False(t, ok)
}

func TestHistoryHoldsManySeries(t *testing.T) {
	h, err := NewHistory(256, time.Minute)
	require.NoError(t, err)
	defer h.Close()

	ids := []string{"bitcoin", "ethereum", "tether", "aave", "uniswap", "solana"}
	days := []int{1, 7, 30, 90, 365}
	for i, id := range ids {
		for _, d := range days {
			h.Set(id, d, []domain.PricePoint{{Time: time.Unix(int64(d), 0), Price: float64(i*1000 + d)}})
		}
	}
	h.Wait()

	for i, id := range ids {
		for _, d := range days {
			got, ok := h.Get(id, d)
			require.True(t, ok, "%s:%d", id, d)
			require.InDelta(t, float64(i*1000+d), got[0].Price, 1e-9)
		}
	}
}

func TestTieredStoreMergedCarriesPatchedQuotes(t *testing.T) {
	c := newTestTiered()
	t0 := time.Unix(1000, 0)
	c.Store(domain.ClassCrypto, []domain.Quote{{ID: "bitcoin", Price: 1}, {ID: "aave", Price: 1}}, t0)
	c.Patch(domain.ClassCrypto, []domain.Quote{{ID: "aave", Price: 95}})

	t1 := t0.Add(time.Minute)
	c.StoreMerged(domain.ClassCrypto, func(prev []domain.Quote) []domain.Quote {
		require.Len(t, prev, 2)
		return []domain.Quote{{ID: "bitcoin", Price: 2}, prev[1]}
	}, t1)

	set, ok := c.Get(domain.ClassCrypto)
	require.True(t, ok)
	require.Equal(t, t1, set.FetchedAt)
	require.InDelta(t, 2, set.Quotes[0].Price, 1e-9)
	require.InDelta(t, 95, set.Quotes[1].Price, 1e-9)
}

func TestTieredPatchWaitsForStoreMerged(t *testing.T) {
	c := newTestTiered()
	t0 := time.Unix(1000, 0)
	c.Store(domain.ClassCrypto, []domain.Quote{{ID: "bitcoin", Price: 1}, {ID: "aave", Price: 1}}, t0)

	patched := make(chan int, 1)
	c.StoreMerged(domain.ClassCrypto, func(prev []domain.Quote) []domain.Quote {
		go func() { patched <- c.Patch(domain.ClassCrypto, []domain.Quote{{ID: "aave", Price: 95}}) }()
		select {
		case <-patched:
			t.Error("patch applied while the merge was in progress")
		case <-time.After(50 * time.Millisecond):
		}
		return []domain.Quote{{ID: "bitcoin", Price: 2}, prev[1]}
	}, t0.Add(time.Minute))

	select {
	case n := <-patched:
		require.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("patch never applied")
	}
	set, _ := c.Get(domain.ClassCrypto)
	require.InDelta(t, 95, set.Quotes[1].Price, 1e-9)
}

func TestTieredStoreMergedWithoutPreviousSet(t *testing.T) {
	c := newTestTiered()
	c.StoreMerged(domain.ClassCrypto, func(prev []domain.Quote) []domain.Quote {
		require.Nil(t, prev)
		return []domain.Quote{{ID: "bitcoin", Price: 3}}
	}, time.Unix(5, 0))
	require.True(t, c.IsValid(domain.ClassCrypto, time.Unix(6, 0)))
}
