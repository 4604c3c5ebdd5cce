package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"currencycheck/internal/alerting"
	"currencycheck/internal/cache"
	"currencycheck/internal/domain"
	"currencycheck/internal/fetcher"
	"currencycheck/internal/render"
	"currencycheck/internal/scheduler"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(ids []string) (map[string]domain.Quote, error)
}

func (f *fakeFetcher) fetch(ids []string) (map[string]domain.Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	fn := f.fn
	f.mu.Unlock()
	return fn(ids)
}

func (f *fakeFetcher) FetchCrypto(_ context.Context, ids []string) (map[string]domain.Quote, error) {
	return f.fetch(ids)
}

func (f *fakeFetcher) FetchFiat(_ context.Context, ids []string) (map[string]domain.Quote, error) {
	return f.fetch(ids)
}

func (f *fakeFetcher) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func (f *fakeFetcher) set(fn func(ids []string) (map[string]domain.Quote, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
}

func priced(price float64, change float64) func(ids []string) (map[string]domain.Quote, error) {
	return func(ids []string) (map[string]domain.Quote, error) {
		out := make(map[string]domain.Quote, len(ids))
		for _, id := range ids {
			out[id] = domain.Quote{ID: id, Price: price, Change24h: change, LastUpdated: 1700000000}
		}
		return out, nil
	}
}

func failing(status int) func(ids []string) (map[string]domain.Quote, error) {
	return func([]string) (map[string]domain.Quote, error) {
		return nil, &fetcher.RemoteError{Source: "test", Status: status}
	}
}

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	c, err := domain.NewCatalog([]domain.Descriptor{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Class: domain.ClassCrypto, Priority: 1},
		{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Class: domain.ClassCrypto, Priority: 1},
		{ID: "tether", Name: "Tether", Symbol: "USDT", Class: domain.ClassCrypto, Priority: 2},
		{ID: "aave", Name: "Aave", Symbol: "AAVE", Class: domain.ClassCrypto, Priority: 3},
		{ID: "uniswap", Name: "Uniswap", Symbol: "UNI", Class: domain.ClassCrypto, Priority: 4},
		{ID: "EUR", Name: "Euro", Symbol: "EUR", Class: domain.ClassFiat, Priority: 1},
		{ID: "JPY", Name: "Japanese Yen", Symbol: "JPY", Class: domain.ClassFiat, Priority: 1},
	})
	require.NoError(t, err)
	return c
}

type harness struct {
	coord    *Coordinator
	cache    *cache.Tiered
	crypto   *fakeFetcher
	fiat     *fakeFetcher
	holder   *render.Holder
	deferred *scheduler.QueueDeferrer
	clock    *clock
}

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		cache: cache.NewTiered(map[domain.Class]time.Duration{
			domain.ClassCrypto: 30 * time.Second,
			domain.ClassFiat:   5 * time.Minute,
		}),
		crypto:   &fakeFetcher{fn: priced(100, 1)},
		fiat:     &fakeFetcher{fn: priced(1.25, 0)},
		holder:   &render.Holder{},
		deferred: &scheduler.QueueDeferrer{},
		clock:    &clock{t: time.Unix(1_700_000_000, 0)},
	}
	deps := Deps{
		Catalog:   testCatalog(t),
		Cache:     h.cache,
		Crypto:    h.crypto,
		Fiat:      h.fiat,
		Presenter: h.holder,
		Deferrer:  h.deferred,
	}
	if mutate != nil {
		mutate(&deps)
	}
	coord, err := New(deps, Options{PriorityCutoff: 2, DeferredDelay: 500 * time.Millisecond, Now: h.clock.Now}, zerolog.Nop())
	require.NoError(t, err)
	h.coord = coord
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, h.deferred.Drain(context.Background(), false))
}

func TestStartupCyclePublishesEveryDescriptor(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)
	require.True(t, res.Published)
	require.True(t, res.Deferred)
	require.ElementsMatch(t, []domain.Class{domain.ClassCrypto, domain.ClassFiat}, res.Fetched)

	require.Equal(t, [][]string{{"bitcoin", "ethereum", "tether"}}, h.crypto.Calls())
	require.Equal(t, [][]string{{"EUR", "JPY"}}, h.fiat.Calls())

	snap, ok := h.coord.Snapshot()
	require.True(t, ok)
	require.Equal(t, 7, snap.Len())

	aave, _ := snap.Find("aave")
	require.Zero(t, aave.Price, "low-priority entry is a placeholder until the deferred wave lands")
	eur, _ := snap.Find("EUR")
	require.InDelta(t, 1.25, eur.Price, 1e-9)

	seen := map[string]bool{}
	for _, e := range snap.Entries {
		require.False(t, seen[e.ID], "duplicate %s", e.ID)
		seen[e.ID] = true
	}
	require.Equal(t, domain.ClassCrypto, snap.Entries[0].Class)
	require.Equal(t, domain.ClassFiat, snap.Entries[6].Class)
}

func TestDeferredWavePatchesWithoutExtendingValidity(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)
	before, _ := h.cache.Get(domain.ClassCrypto)

	h.crypto.set(priced(95, -2))
	h.clock.Advance(500 * time.Millisecond)
	h.drain(t)

	calls := h.crypto.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, []string{"aave", "uniswap"}, calls[1])

	after, _ := h.cache.Get(domain.ClassCrypto)
	require.Equal(t, before.FetchedAt, after.FetchedAt)
	q, _ := after.Quote("aave")
	require.InDelta(t, 95, q.Price, 1e-9)

	snap, _ := h.coord.Snapshot()
	aave, _ := snap.Find("aave")
	require.InDelta(t, 95, aave.Price, 1e-9)
	btc, _ := snap.Find("bitcoin")
	require.InDelta(t, 100, btc.Price, 1e-9)

	renders, patches := h.holder.Counts()
	require.Equal(t, 1, renders)
	require.Equal(t, 1, patches)
	held, _ := h.holder.Snapshot()
	heldAave, _ := held.Find("aave")
	require.InDelta(t, 95, heldAave.Price, 1e-9)

	stats := h.coord.Statistics()
	require.NotNil(t, stats.TopLoser, "stats follow the patched snapshot")
	require.InDelta(t, -2, stats.TopLoser.Change24h, 1e-9)
}

func TestCachedCycleMakesNoNetworkCalls(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)
	h.drain(t)
	first, _ := h.coord.Snapshot()

	h.clock.Advance(10 * time.Second)
	res, err := h.coord.Refresh(ctx, TriggerTimer, false)
	require.NoError(t, err)
	require.Empty(t, res.Fetched)
	require.ElementsMatch(t, []domain.Class{domain.ClassCrypto, domain.ClassFiat}, res.FromCache)
	require.False(t, res.Deferred)

	require.Len(t, h.crypto.Calls(), 2)
	require.Len(t, h.fiat.Calls(), 1)

	second, _ := h.coord.Snapshot()
	require.Equal(t, len(first.Entries), len(second.Entries))
	for i := range first.Entries {
		require.Equal(t, first.Entries[i].Quote(), second.Entries[i].Quote())
	}
}

func TestCryptoFailureKeepsStaleCryptoAndMergesFiat(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)
	h.drain(t)
	cryptoBefore, _ := h.cache.Get(domain.ClassCrypto)

	h.clock.Advance(6 * time.Minute)
	h.crypto.set(failing(http.StatusServiceUnavailable))
	h.fiat.set(priced(2, 0))

	res, err := h.coord.Refresh(ctx, TriggerTimer, false)
	require.Error(t, err)
	re, ok := fetcher.AsRemote(err)
	require.True(t, ok)
	require.Equal(t, http.StatusServiceUnavailable, re.Status)
	require.True(t, res.Published)
	require.Equal(t, []domain.Class{domain.ClassFiat}, res.Fetched)
	require.False(t, res.Deferred)

	cryptoAfter, _ := h.cache.Get(domain.ClassCrypto)
	require.Equal(t, cryptoBefore, cryptoAfter)

	snap, _ := h.coord.Snapshot()
	btc, _ := snap.Find("bitcoin")
	require.InDelta(t, 100, btc.Price, 1e-9)
	eur, _ := snap.Find("EUR")
	require.InDelta(t, 2, eur.Price, 1e-9)

	require.Error(t, h.holder.Err())
	require.Error(t, h.coord.LastError())
}

func TestFailedFetchWithoutFreshDataLeavesSnapshotUnchanged(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)
	before, _ := h.coord.Snapshot()

	h.clock.Advance(31 * time.Second)
	h.crypto.set(failing(http.StatusBadGateway))

	res, err := h.coord.Refresh(ctx, TriggerTimer, false)
	require.Error(t, err)
	require.False(t, res.Published)
	require.Empty(t, res.Fetched)
	require.Equal(t, []domain.Class{domain.ClassFiat}, res.FromCache)

	after, _ := h.coord.Snapshot()
	require.Equal(t, before, after)
	renders, _ := h.holder.Counts()
	require.Equal(t, 1, renders)
	require.Error(t, h.holder.Err())

	h.crypto.set(priced(101, 1))
	_, err = h.coord.Refresh(ctx, TriggerManual, false)
	require.NoError(t, err)
	require.NoError(t, h.holder.Err(), "a successful cycle clears the error")
}

func TestStartupFailurePublishesNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.crypto.set(failing(http.StatusInternalServerError))
	h.fiat.set(func([]string) (map[string]domain.Quote, error) {
		return nil, fetcher.ErrTransientNetwork
	})

	_, err := h.coord.Refresh(context.Background(), TriggerStartup, false)
	require.Error(t, err)
	require.ErrorIs(t, err, fetcher.ErrTransientNetwork)

	_, ok := h.coord.Snapshot()
	require.False(t, ok)
	_, ok = h.holder.Snapshot()
	require.False(t, ok)
	require.Zero(t, h.deferred.Pending())
}

func TestMissingUpstreamDataBecomesPlaceholder(t *testing.T) {
	h := newHarness(t, nil)
	h.crypto.set(func(ids []string) (map[string]domain.Quote, error) {
		return map[string]domain.Quote{"bitcoin": {ID: "bitcoin", Price: 60000}}, nil
	})
	h.fiat.set(func([]string) (map[string]domain.Quote, error) {
		return map[string]domain.Quote{}, nil
	})

	_, err := h.coord.Refresh(context.Background(), TriggerStartup, false)
	require.NoError(t, err)

	snap, _ := h.coord.Snapshot()
	require.Equal(t, 7, snap.Len())
	eth, ok := snap.Find("ethereum")
	require.True(t, ok)
	require.Zero(t, eth.Price)
	require.Equal(t, h.clock.Now().Unix(), eth.LastUpdated)
	jpy, ok := snap.Find("JPY")
	require.True(t, ok)
	require.Zero(t, jpy.Price)
}

func TestForceBypassesCache(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)

	res, err := h.coord.Refresh(ctx, TriggerManual, true)
	require.NoError(t, err)
	require.Len(t, res.Fetched, 2)
	require.Len(t, h.crypto.Calls(), 2)
	require.Len(t, h.fiat.Calls(), 2)
}

func TestDeferredFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)

	h.crypto.set(failing(http.StatusTooManyRequests))
	h.drain(t)

	require.NoError(t, h.holder.Err())
	require.NoError(t, h.coord.LastError())
	_, patches := h.holder.Counts()
	require.Zero(t, patches)

	h.coord.mu.Lock()
	failures := h.coord.deferredFailures
	h.coord.mu.Unlock()
	require.Equal(t, 1, failures)
}

func TestVisibilityPausesAndForcesRefresh(t *testing.T) {
	sched := scheduler.New(scheduler.Options{Interval: time.Minute}, zerolog.Nop())
	h := newHarness(t, func(d *Deps) { d.Scheduler = sched })
	ctx := context.Background()

	_, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)

	ran, err := h.coord.SetVisible(ctx, true)
	require.NoError(t, err)
	require.False(t, ran, "already visible")

	ran, err = h.coord.SetVisible(ctx, false)
	require.NoError(t, err)
	require.False(t, ran)
	require.True(t, sched.Paused())
	require.False(t, h.coord.Visible())

	ran, err = h.coord.SetVisible(ctx, true)
	require.NoError(t, err)
	require.True(t, ran)
	require.False(t, sched.Paused())
	require.Len(t, h.crypto.Calls(), 2, "regaining visibility bypasses the still-valid cache")
	require.Equal(t, TriggerVisibility, h.coord.LastCycle().Trigger)
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return errors.New("delivery failed")
}

func TestPriceAlertsAfterMerge(t *testing.T) {
	notifier := &recordingNotifier{}
	h := newHarness(t, func(d *Deps) {
		d.Detector = alerting.NewDetector(10, 30*time.Minute)
		d.Notifier = notifier
	})
	ctx := context.Background()
	h.crypto.set(priced(100, 12))

	_, err := h.coord.Refresh(ctx, TriggerStartup, false)
	require.NoError(t, err)
	require.Empty(t, notifier.notes, "nothing was seen before the first merge")

	h.clock.Advance(31 * time.Second)
	_, err = h.coord.Refresh(ctx, TriggerTimer, false)
	require.NoError(t, err, "notifier failures do not fail the cycle")
	require.Len(t, notifier.notes, 3)
	require.Equal(t, alerting.DirectionUp, notifier.notes[0].Direction)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestPriorityFetchesRunConcurrentlyAndJoin(t *testing.T) {
	h := newHarness(t, nil)
	cryptoStarted := make(chan struct{})
	fiatStarted := make(chan struct{})

	var mu sync.Mutex
	var problems []string
	note := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		problems = append(problems, msg)
	}
	// rendezvous waits for the sibling fetch, then checks nothing was committed
	// while a fetch is still in flight.
	rendezvous := func(own, other chan struct{}, next func([]string) (map[string]domain.Quote, error)) func([]string) (map[string]domain.Quote, error) {
		return func(ids []string) (map[string]domain.Quote, error) {
			close(own)
			select {
			case <-other:
			case <-time.After(2 * time.Second):
				note("sibling fetch never started")
				return nil, errors.New("fetches ran sequentially")
			}
			if _, ok := h.cache.Get(domain.ClassCrypto); ok {
				note("crypto stored before both fetches returned")
			}
			if _, ok := h.cache.Get(domain.ClassFiat); ok {
				note("fiat stored before both fetches returned")
			}
			if _, ok := h.holder.Snapshot(); ok {
				note("snapshot published before both fetches returned")
			}
			return next(ids)
		}
	}
	h.crypto.set(rendezvous(cryptoStarted, fiatStarted, priced(100, 1)))
	h.fiat.set(rendezvous(fiatStarted, cryptoStarted, priced(1.25, 0)))

	res, err := h.coord.Refresh(context.Background(), TriggerStartup, false)
	require.NoError(t, err)
	require.Empty(t, problems)
	require.ElementsMatch(t, []domain.Class{domain.ClassCrypto, domain.ClassFiat}, res.Fetched)

	snap, ok := h.holder.Snapshot()
	require.True(t, ok)
	require.Equal(t, 7, snap.Len())
}
