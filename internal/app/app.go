package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"currencycheck/internal/alerting"
	"currencycheck/internal/cache"
	"currencycheck/internal/config"
	"currencycheck/internal/domain"
	"currencycheck/internal/fetcher"
	"currencycheck/internal/prefs"
	"currencycheck/internal/render"
	"currencycheck/internal/scheduler"
	"currencycheck/internal/service"
	"currencycheck/internal/storage"
)

const channelConsole = "console"

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Out     io.Writer
	Catalog *domain.Catalog
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logger.With().Str("component", "app").Logger(),
		Out:     os.Stdout,
		Catalog: domain.DefaultCatalog(),
	}
}

func (a *App) newFetchers() (*fetcher.CoinGecko, *fetcher.FXRates) {
	cg := a.Config.CoinGecko
	crypto := fetcher.NewCoinGecko(fetcher.CoinGeckoOptions{
		BaseURL:           cg.BaseURL,
		APIKey:            cg.APIKey,
		Timeout:           cg.RequestTimeout,
		UserAgent:         cg.UserAgent,
		RequestsPerMinute: cg.RequestsPerMinute,
		HistoryAttempts:   cg.HistoryAttempts,
		HistoryBackoff:    cg.HistoryBackoff,
	}, a.Logger)

	fx := a.Config.FXRates
	fiat := fetcher.NewFXRates(fetcher.FXRatesOptions{
		BaseURL:   fx.BaseURL,
		Timeout:   fx.RequestTimeout,
		UserAgent: fx.UserAgent,
	}, a.Logger)

	return crypto, fiat
}

func (a *App) newCache() *cache.Tiered {
	crypto, fiat := a.Config.CacheValidity()
	return cache.NewTiered(map[domain.Class]time.Duration{
		domain.ClassCrypto: crypto,
		domain.ClassFiat:   fiat,
	})
}

// newNotifier assembles the configured alert channels. sound may be nil.
func (a *App) newNotifier(out io.Writer, sound func() bool) alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	var notifiers alerting.Multi
	if slices.Contains(a.Config.Alerting.Channels, channelConsole) {
		notifiers = append(notifiers, alerting.NewWriterNotifier(out, sound))
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notifiers
}

func (a *App) newDetector() *alerting.Detector {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	return alerting.NewDetector(a.Config.Alerting.ThresholdPct, a.Config.Alerting.Cooldown)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if !a.Config.Database.Enabled() {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openPrefs() (*prefs.Store, error) {
	return prefs.Open(a.Config.Prefs.Path, a.Logger)
}

func (a *App) newHistory() (*service.History, func(), error) {
	hc, err := cache.NewHistory(a.Config.History.CacheMaxItems, a.Config.History.CacheTTL)
	if err != nil {
		return nil, nil, err
	}
	crypto, _ := a.newFetchers()
	return service.NewHistory(crypto, hc, a.Logger), hc.Close, nil
}

// coordinatorDeps carries the per-command collaborators of a coordinator.
type coordinatorDeps struct {
	presenter  render.Presenter
	deferrer   scheduler.Deferrer
	scheduler  *scheduler.Scheduler
	store      *storage.Store
	detector   *alerting.Detector
	notifier   alerting.Notifier
	crypto     fetcher.CryptoQuoteFetcher
	fiat       fetcher.FiatQuoteFetcher
	cacheTiers *cache.Tiered
}

func (a *App) newCoordinator(d coordinatorDeps) (*service.Coordinator, error) {
	if d.crypto == nil || d.fiat == nil {
		crypto, fiat := a.newFetchers()
		if d.crypto == nil {
			d.crypto = crypto
		}
		if d.fiat == nil {
			d.fiat = fiat
		}
	}
	if d.cacheTiers == nil {
		d.cacheTiers = a.newCache()
	}

	deps := service.Deps{
		Catalog:   a.Catalog,
		Cache:     d.cacheTiers,
		Crypto:    d.crypto,
		Fiat:      d.fiat,
		Presenter: d.presenter,
		Deferrer:  d.deferrer,
		Scheduler: d.scheduler,
		Detector:  d.detector,
		Notifier:  d.notifier,
	}
	if d.store != nil {
		deps.Sink = d.store
		deps.AlertStore = d.store
	}

	r := a.Config.Refresh
	return service.New(deps, service.Options{
		PriorityCutoff:    r.PriorityCutoff,
		DeferredDelay:     r.DeferredDelay,
		DeferredWarnAfter: r.DeferredWarnAfter,
		AlertChannels:     a.Config.Alerting.Channels,
	}, a.Logger)
}

// snapshotOnce runs a single refresh, waits for the deferred wave, and returns
// the resulting snapshot. Used by one-shot commands that need prices.
func (a *App) snapshotOnce(ctx context.Context, d coordinatorDeps) (domain.Snapshot, *service.Coordinator, error) {
	queue := &scheduler.QueueDeferrer{}
	d.deferrer = queue
	d.presenter = &render.Holder{}

	coord, err := a.newCoordinator(d)
	if err != nil {
		return domain.Snapshot{}, nil, err
	}
	_, refreshErr := coord.Refresh(ctx, service.TriggerManual, false)
	if err := queue.Drain(ctx, true); err != nil {
		return domain.Snapshot{}, nil, err
	}

	snap, ok := coord.Snapshot()
	if !ok {
		if refreshErr != nil {
			return domain.Snapshot{}, nil, fmt.Errorf("no prices available: %w", refreshErr)
		}
		return domain.Snapshot{}, nil, fmt.Errorf("no prices available")
	}
	if refreshErr != nil {
		a.Logger.Warn().Err(refreshErr).Msg("partial refresh, some prices may be stale or missing")
	}
	return snap, coord, nil
}
