package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"currencycheck/internal/alerting"
	"currencycheck/internal/cache"
	"currencycheck/internal/domain"
	"currencycheck/internal/fetcher"
	"currencycheck/internal/render"
	"currencycheck/internal/scheduler"
	"currencycheck/internal/storage"
)

// Trigger names what started a refresh cycle.
type Trigger string

const (
	TriggerStartup    Trigger = "startup"
	TriggerTimer      Trigger = "timer"
	TriggerVisibility Trigger = "visibility"
	TriggerManual     Trigger = "manual"
)

// Phase is the coordinator's position within a cycle.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseCheckingCache    Phase = "checking_cache"
	PhaseFetchingPriority Phase = "fetching_priority"
	PhaseFetchingDeferred Phase = "fetching_deferred"
	PhaseMerged           Phase = "merged"
)

// Options tune the refresh cycle.
type Options struct {
	// PriorityCutoff is the highest crypto priority fetched in the first wave.
	PriorityCutoff int
	// DeferredDelay separates the first wave from the low-priority wave.
	DeferredDelay time.Duration
	// DeferredWarnAfter escalates deferred-wave failure logs to error level
	// after this many consecutive failures.
	DeferredWarnAfter int
	// AlertChannels is recorded with persisted alerts.
	AlertChannels []string
	Now           func() time.Time
}

// Deps are the collaborators of a Coordinator. Scheduler, Sink, Detector,
// Notifier and AlertStore are optional.
type Deps struct {
	Catalog    *domain.Catalog
	Cache      *cache.Tiered
	Crypto     fetcher.CryptoQuoteFetcher
	Fiat       fetcher.FiatQuoteFetcher
	Presenter  render.Presenter
	Deferrer   scheduler.Deferrer
	Scheduler  *scheduler.Scheduler
	Sink       storage.QuoteSampleStore
	Detector   *alerting.Detector
	Notifier   alerting.Notifier
	AlertStore storage.AlertStore
}

// CycleResult describes what a refresh cycle did.
type CycleResult struct {
	ID        string
	Trigger   Trigger
	Fetched   []domain.Class
	FromCache []domain.Class
	Published bool
	Deferred  bool
}

// Coordinator runs refresh cycles: consult the tiered cache, fetch what is
// stale, merge both classes into a snapshot and hand it to the presenter.
type Coordinator struct {
	catalog    *domain.Catalog
	cache      *cache.Tiered
	crypto     fetcher.CryptoQuoteFetcher
	fiat       fetcher.FiatQuoteFetcher
	presenter  render.Presenter
	deferrer   scheduler.Deferrer
	scheduler  *scheduler.Scheduler
	sink       storage.QuoteSampleStore
	detector   *alerting.Detector
	notifier   alerting.Notifier
	alertStore storage.AlertStore
	opts       Options
	now        func() time.Time
	logger     zerolog.Logger

	phase atomic.Value

	// mu guards everything below and is held across presenter calls so
	// renders and patches reach the presenter in commit order.
	mu               sync.Mutex
	current          domain.Snapshot
	published        bool
	stats            domain.Statistics
	lastErr          error
	lastCycle        CycleResult
	hidden           bool
	deferredFailures int
}

// New constructs a Coordinator.
func New(deps Deps, opts Options, logger zerolog.Logger) (*Coordinator, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("catalog required")
	case deps.Cache == nil:
		return nil, errors.New("cache required")
	case deps.Crypto == nil || deps.Fiat == nil:
		return nil, errors.New("crypto and fiat fetchers required")
	case deps.Presenter == nil:
		return nil, errors.New("presenter required")
	case deps.Deferrer == nil:
		return nil, errors.New("deferrer required")
	}

	if opts.PriorityCutoff <= 0 {
		opts.PriorityCutoff = 2
	}
	if opts.DeferredDelay < 0 {
		opts.DeferredDelay = 0
	}
	if opts.DeferredWarnAfter <= 0 {
		opts.DeferredWarnAfter = 5
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &Coordinator{
		catalog:    deps.Catalog,
		cache:      deps.Cache,
		crypto:     deps.Crypto,
		fiat:       deps.Fiat,
		presenter:  deps.Presenter,
		deferrer:   deps.Deferrer,
		scheduler:  deps.Scheduler,
		sink:       deps.Sink,
		detector:   deps.Detector,
		notifier:   deps.Notifier,
		alertStore: deps.AlertStore,
		opts:       opts,
		now:        now,
		logger:     logger.With().Str("component", "coordinator").Logger(),
	}
	c.phase.Store(PhaseIdle)
	return c, nil
}

// Run performs the startup cycle and then refreshes on every scheduler tick
// until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if _, err := c.Refresh(ctx, TriggerStartup, false); err != nil {
		c.logger.Warn().Err(err).Msg("startup refresh failed")
	}
	return c.scheduler.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, err := c.Refresh(ctx, TriggerTimer, false)
		if err != nil {
			c.logger.Warn().Err(err).Msg("scheduled refresh failed")
		}
		return nil
	})
}

// SetVisible records display visibility. Hiding pauses timer cycles; becoming
// visible again resumes them and runs a forced refresh. It reports whether a
// refresh ran.
func (c *Coordinator) SetVisible(ctx context.Context, visible bool) (bool, error) {
	c.mu.Lock()
	wasHidden := c.hidden
	c.hidden = !visible
	c.mu.Unlock()

	if !visible {
		if c.scheduler != nil {
			c.scheduler.Pause()
		}
		c.logger.Debug().Msg("display hidden, timer paused")
		return false, nil
	}
	if !wasHidden {
		return false, nil
	}

	if c.scheduler != nil {
		c.scheduler.Resume()
	}
	c.logger.Debug().Msg("display visible again, forcing refresh")
	_, err := c.Refresh(ctx, TriggerVisibility, true)
	return true, err
}

// Visible reports the last visibility state.
func (c *Coordinator) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.hidden
}

// Snapshot returns a copy of the last published snapshot.
func (c *Coordinator) Snapshot() (domain.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.published {
		return domain.Snapshot{}, false
	}
	return c.current.Clone(), true
}

// Statistics returns aggregates of the last published snapshot.
func (c *Coordinator) Statistics() domain.Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// LastError returns the error of the most recent cycle, nil if it succeeded.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastCycle returns the result of the most recent cycle.
func (c *Coordinator) LastCycle() CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCycle
}

// Phase returns the phase of the most recently started cycle.
func (c *Coordinator) Phase() Phase {
	return c.phase.Load().(Phase)
}

func (c *Coordinator) setPhase(log zerolog.Logger, p Phase) {
	c.phase.Store(p)
	log.Debug().Str("phase", string(p)).Msg("refresh phase")
}
