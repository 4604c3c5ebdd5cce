package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"currencycheck/internal/alerting"
	"currencycheck/internal/domain"
	"currencycheck/internal/fetcher"
	"currencycheck/internal/metrics"
	"currencycheck/internal/render"
	"currencycheck/internal/storage"
)

const (
	wavePriority = "priority"
	waveDeferred = "deferred"
)

type fetchOutcome struct {
	attempted bool
	quotes    map[string]domain.Quote
	err       error
}

func (o fetchOutcome) ok() bool { return o.attempted && o.err == nil }

// Refresh runs one cycle. With force set, cache validity is ignored. The
// returned error joins any fetch failures; the presenter has already been told.
func (c *Coordinator) Refresh(ctx context.Context, trigger Trigger, force bool) (CycleResult, error) {
	res := CycleResult{ID: uuid.NewString(), Trigger: trigger}
	log := c.logger.With().Str("cycle", res.ID).Str("trigger", string(trigger)).Logger()

	c.setPhase(log, PhaseCheckingCache)
	now := c.now()
	needCrypto := force || !c.cache.IsValid(domain.ClassCrypto, now)
	needFiat := force || !c.cache.IsValid(domain.ClassFiat, now)
	for class, need := range map[domain.Class]bool{domain.ClassCrypto: needCrypto, domain.ClassFiat: needFiat} {
		if need {
			metrics.CacheMissesTotal.WithLabelValues(string(class)).Inc()
		} else {
			metrics.CacheHitsTotal.WithLabelValues(string(class)).Inc()
		}
	}

	priority, deferred := c.catalog.Split(domain.ClassCrypto, c.opts.PriorityCutoff)
	fiatDescs := c.catalog.ByClass(domain.ClassFiat)

	var crypto, fiat fetchOutcome
	if needCrypto || needFiat {
		c.setPhase(log, PhaseFetchingPriority)
		var wg sync.WaitGroup
		if needCrypto {
			wg.Add(1)
			go func() {
				defer wg.Done()
				crypto = c.fetchClass(ctx, domain.ClassCrypto, wavePriority, domain.IDs(priority))
			}()
		}
		if needFiat {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fiat = c.fetchClass(ctx, domain.ClassFiat, wavePriority, domain.IDs(fiatDescs))
			}()
		}
		wg.Wait()
	}

	fetchedAt := c.now()
	if crypto.ok() {
		c.cache.StoreMerged(domain.ClassCrypto, func(prev []domain.Quote) []domain.Quote {
			return c.mergeCrypto(prev, priority, deferred, crypto.quotes, fetchedAt)
		}, fetchedAt)
		res.Fetched = append(res.Fetched, domain.ClassCrypto)
	} else if !needCrypto {
		res.FromCache = append(res.FromCache, domain.ClassCrypto)
	}
	if fiat.ok() {
		c.cache.Store(domain.ClassFiat, fillClass(fiatDescs, fiat.quotes, fetchedAt), fetchedAt)
		res.Fetched = append(res.Fetched, domain.ClassFiat)
	} else if !needFiat {
		res.FromCache = append(res.FromCache, domain.ClassFiat)
	}

	var cycleErr error
	if crypto.err != nil {
		cycleErr = errors.Join(cycleErr, fmt.Errorf("fetch crypto prices: %w", crypto.err))
	}
	if fiat.err != nil {
		cycleErr = errors.Join(cycleErr, fmt.Errorf("fetch fiat rates: %w", fiat.err))
	}
	fresh := len(res.Fetched) > 0

	snap, notes, published := c.commit(log, &res, cycleErr, fresh, fetchedAt)
	c.setPhase(log, PhaseIdle)

	switch {
	case cycleErr == nil:
		metrics.RefreshCyclesTotal.WithLabelValues(string(trigger), "ok").Inc()
	case published:
		metrics.RefreshCyclesTotal.WithLabelValues(string(trigger), "partial").Inc()
	default:
		metrics.RefreshCyclesTotal.WithLabelValues(string(trigger), "failed").Inc()
	}

	if published && fresh {
		c.record(ctx, log, snap, fetchedAt)
	}
	c.dispatch(ctx, log, notes)

	if crypto.ok() && len(deferred) > 0 {
		ids := domain.IDs(deferred)
		cycleID := res.ID
		if err := c.deferrer.After(c.opts.DeferredDelay, func(ctx context.Context) {
			c.runDeferred(ctx, cycleID, ids)
		}); err != nil {
			log.Warn().Err(err).Msg("could not schedule deferred wave")
		} else {
			res.Deferred = true
			c.mu.Lock()
			if c.lastCycle.ID == res.ID {
				c.lastCycle.Deferred = true
			}
			c.mu.Unlock()
		}
	}

	event := log.Info()
	if cycleErr != nil {
		event = log.Warn().Err(cycleErr)
	}
	event.Int("fetched", len(res.Fetched)).
		Int("from_cache", len(res.FromCache)).
		Bool("published", res.Published).
		Bool("deferred", res.Deferred).
		Msg("refresh cycle complete")

	return res, cycleErr
}

// commit builds and publishes the snapshot under the coordinator lock. With an
// error and nothing fresh the previous snapshot stays as is.
func (c *Coordinator) commit(log zerolog.Logger, res *CycleResult, cycleErr error, fresh bool, at time.Time) (domain.Snapshot, []alerting.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = cycleErr
	if cycleErr != nil && !fresh {
		c.lastCycle = *res
		c.presenter.ShowError(cycleErr)
		return domain.Snapshot{}, nil, false
	}

	snap := c.buildSnapshot(at)
	c.current = snap
	c.published = true
	res.Published = true
	c.lastCycle = *res

	c.setPhase(log, PhaseMerged)
	render.Publish(c.presenter, snap, cycleErr)

	c.stats = domain.ComputeStatistics(snap)
	metrics.SnapshotEntries.Set(float64(snap.Len()))

	var notes []alerting.Notification
	if c.detector != nil {
		notes = c.detector.Evaluate(snap, at)
	}
	return snap.Clone(), notes, true
}

// buildSnapshot joins cached sets with the catalog: crypto first, then fiat.
// A class with no cached set yields placeholders.
func (c *Coordinator) buildSnapshot(at time.Time) domain.Snapshot {
	snap := domain.Snapshot{TakenAt: at, Entries: make([]domain.Entry, 0, c.catalog.Len())}
	for _, class := range domain.Classes {
		set, _ := c.cache.Get(class)
		byID := make(map[string]domain.Quote, len(set.Quotes))
		for _, q := range set.Quotes {
			byID[q.ID] = q
		}
		for _, d := range c.catalog.ByClass(class) {
			q, ok := byID[d.ID]
			if !ok {
				q = domain.Placeholder(d.ID, at)
			}
			snap.Entries = append(snap.Entries, domain.NewEntry(d, q))
		}
	}
	return snap
}

// mergeCrypto combines freshly fetched priority quotes with the low-priority
// quotes of the previous set, so a store never drops entries the deferred wave
// has not refreshed yet. It runs under the cache lock and must not call back
// into the cache.
func (c *Coordinator) mergeCrypto(previous []domain.Quote, priority, deferred []domain.Descriptor, fetched map[string]domain.Quote, at time.Time) []domain.Quote {
	prev := make(map[string]domain.Quote, len(previous))
	for _, q := range previous {
		prev[q.ID] = q
	}

	out := make([]domain.Quote, 0, len(priority)+len(deferred))
	priorityIDs := make(map[string]struct{}, len(priority))
	for _, d := range priority {
		priorityIDs[d.ID] = struct{}{}
	}
	for _, d := range c.catalog.ByClass(domain.ClassCrypto) {
		if _, ok := priorityIDs[d.ID]; ok {
			q, ok := fetched[d.ID]
			if !ok {
				q = domain.Placeholder(d.ID, at)
			}
			out = append(out, q)
			continue
		}
		q, ok := prev[d.ID]
		if !ok {
			q = domain.Placeholder(d.ID, at)
		}
		out = append(out, q)
	}
	return out
}

func fillClass(descs []domain.Descriptor, fetched map[string]domain.Quote, at time.Time) []domain.Quote {
	out := make([]domain.Quote, 0, len(descs))
	for _, d := range descs {
		q, ok := fetched[d.ID]
		if !ok {
			q = domain.Placeholder(d.ID, at)
		}
		out = append(out, q)
	}
	return out
}

func (c *Coordinator) fetchClass(ctx context.Context, class domain.Class, wave string, ids []string) fetchOutcome {
	out := fetchOutcome{attempted: true}
	if len(ids) == 0 {
		out.quotes = map[string]domain.Quote{}
		return out
	}
	start := time.Now()
	switch class {
	case domain.ClassCrypto:
		out.quotes, out.err = c.crypto.FetchCrypto(ctx, ids)
	case domain.ClassFiat:
		out.quotes, out.err = c.fiat.FetchFiat(ctx, ids)
	default:
		out.err = fmt.Errorf("unknown class %q", class)
	}
	metrics.ObserveFetch(string(class), wave, time.Since(start))
	if out.err != nil {
		metrics.FetchErrorsTotal.WithLabelValues(string(class), wave, errorKind(out.err)).Inc()
	}
	return out
}

// runDeferred fetches the low-priority crypto ids and patches cache, snapshot
// and presenter. Failures are logged and never surfaced.
func (c *Coordinator) runDeferred(ctx context.Context, cycleID string, ids []string) {
	log := c.logger.With().Str("cycle", cycleID).Str("wave", waveDeferred).Logger()
	c.setPhase(log, PhaseFetchingDeferred)
	defer c.setPhase(log, PhaseIdle)

	out := c.fetchClass(ctx, domain.ClassCrypto, waveDeferred, ids)
	if out.err != nil {
		c.mu.Lock()
		c.deferredFailures++
		failures := c.deferredFailures
		c.mu.Unlock()

		event := log.Warn()
		if failures >= c.opts.DeferredWarnAfter {
			event = log.Error()
		}
		event.Err(out.err).Int("consecutive_failures", failures).Msg("deferred wave failed")
		return
	}

	quotes := make([]domain.Quote, 0, len(out.quotes))
	entries := make([]domain.Entry, 0, len(out.quotes))
	for _, id := range ids {
		q, ok := out.quotes[id]
		if !ok {
			continue
		}
		d, ok := c.catalog.Lookup(id)
		if !ok {
			continue
		}
		quotes = append(quotes, q)
		entries = append(entries, domain.NewEntry(d, q))
	}

	patched := c.cache.Patch(domain.ClassCrypto, quotes)

	c.mu.Lock()
	c.deferredFailures = 0
	if c.published && len(entries) > 0 {
		c.current = c.current.WithPatched(entries)
		c.stats = domain.ComputeStatistics(c.current)
		c.presenter.Patch(entries)
	}
	c.mu.Unlock()

	log.Debug().Int("received", len(quotes)).Int("patched", patched).Msg("deferred wave applied")
}

func (c *Coordinator) record(ctx context.Context, log zerolog.Logger, snap domain.Snapshot, at time.Time) {
	if c.sink == nil {
		return
	}
	samples := storage.SamplesFromSnapshot(snap, at)
	if len(samples) == 0 {
		return
	}
	if err := c.sink.UpsertQuoteSamples(ctx, samples); err != nil {
		log.Error().Err(err).Int("samples", len(samples)).Msg("failed to persist quote samples")
	}
}

func (c *Coordinator) dispatch(ctx context.Context, log zerolog.Logger, notes []alerting.Notification) {
	for _, note := range notes {
		metrics.PriceAlertsTotal.Inc()
		if c.alertStore != nil {
			record := storage.AlertRecordFromNotification(note, c.opts.AlertChannels)
			if _, err := c.alertStore.InsertAlert(ctx, record); err != nil {
				log.Error().Err(err).Str("currency", note.CurrencyID).Msg("failed to persist alert record")
			}
		}
		if c.notifier == nil {
			continue
		}
		if err := c.notifier.Notify(ctx, note); err != nil {
			log.Error().Err(err).Str("currency", note.CurrencyID).Msg("failed to dispatch alert")
		}
	}
}

func errorKind(err error) string {
	switch {
	case fetcher.IsTransient(err):
		return "transient"
	case errors.Is(err, fetcher.ErrDataShape):
		return "data_shape"
	}
	if _, ok := fetcher.AsRemote(err); ok {
		return "remote"
	}
	return "other"
}
