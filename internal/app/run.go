package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"currencycheck/internal/render"
	"currencycheck/internal/scheduler"
	"currencycheck/internal/search"
	"currencycheck/internal/server"
	"currencycheck/internal/service"
)

// RunOptions configure the long-running dashboard.
type RunOptions struct {
	Filter    search.Mode
	Query     string
	NoConsole bool
}

// Run executes the long-running dashboard until interrupted.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Info().Msg("database.dsn not configured; quote history disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Refresh.Interval,
		AlignToStart: a.Config.Refresh.AlignToStart,
		StartupDelay: a.Config.Refresh.StartupDelay,
	}, a.Logger)

	deferrer, err := scheduler.NewJobDeferrer(ctx, a.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := deferrer.Shutdown(); shutdownErr != nil {
			a.Logger.Warn().Err(shutdownErr).Msg("deferred job scheduler shutdown")
		}
	}()

	var presenters render.Multi
	var hub *server.Hub
	if a.Config.Server.Enabled {
		hub = server.NewHub(a.Logger)
		presenters = append(presenters, hub)
	}
	if !opts.NoConsole {
		clearScreen := false
		if f, ok := a.Out.(*os.File); ok {
			clearScreen = render.IsTerminal(f)
		}
		presenters = append(presenters, render.NewConsole(a.Out, render.ConsoleOptions{
			ClearScreen: clearScreen,
			View:        render.View{Mode: opts.Filter, Query: opts.Query, Favorites: userPrefs.Favorites()},
		}))
	}

	coord, err := a.newCoordinator(coordinatorDeps{
		presenter: presenters,
		deferrer:  deferrer,
		scheduler: sched,
		store:     store,
		detector:  a.newDetector(),
		notifier:  a.newNotifier(os.Stderr, userPrefs.SoundEnabled),
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if hub != nil {
		srv := server.New(a.Config.Server.Addr,
			server.NewRouter(server.NewHandler(coord, userPrefs, a.Logger), hub),
			a.Config.Server.ShutdownTimeout, a.Logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if srvErr := srv.Run(ctx); srvErr != nil {
				a.Logger.Error().Err(srvErr).Msg("http api stopped")
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchSignals(ctx, coord, a.Logger)
	}()

	a.Logger.Info().Int("currencies", a.Catalog.Len()).Dur("interval", a.Config.Refresh.Interval).Msg("starting dashboard")
	err = coord.Run(ctx)
	cancel()
	if hub != nil {
		hub.Close()
	}
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("dashboard terminated with error")
		return err
	}

	a.Logger.Info().Msg("dashboard stopped")
	return nil
}

// visibilityController is what the signal watcher drives.
type visibilityController interface {
	Refresh(ctx context.Context, trigger service.Trigger, force bool) (service.CycleResult, error)
	SetVisible(ctx context.Context, visible bool) (bool, error)
	Visible() bool
}
