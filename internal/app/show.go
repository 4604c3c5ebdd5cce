package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"currencycheck/internal/render"
	"currencycheck/internal/search"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Filter search.Mode
	Query  string
}

// Show runs one refresh cycle, including the deferred wave, and prints the table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}

	snap, coord, err := a.snapshotOnce(ctx, coordinatorDeps{})
	if err != nil {
		return err
	}

	console := render.NewConsole(a.Out, render.ConsoleOptions{
		View: render.View{Mode: opts.Filter, Query: opts.Query, Favorites: userPrefs.Favorites()},
		Now:  func() time.Time { return snap.TakenAt },
	})
	console.Render(snap)
	if lastErr := coord.LastError(); lastErr != nil {
		fmt.Fprintf(a.Out, "warning: some prices are stale or missing: %s\n", sanitizeInline(lastErr.Error()))
	}
	return nil
}

func sanitizeInline(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// SamplesOptions configure the samples command.
type SamplesOptions struct {
	Limit  int
	Alerts bool
}

// Samples prints recently stored quote samples, or alert records.
func (a *App) Samples(ctx context.Context, opts SamplesOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	defer writer.Flush()

	if opts.Alerts {
		alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Fprintln(a.Out, "no alerts found")
			return nil
		}
		fmt.Fprintln(writer, "Time (UTC)\tSymbol\tPrice\t24h%\tThreshold%\tDirection\tChannels")
		for _, rec := range alerts {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				rec.AlertedAt.UTC().Format(time.RFC3339),
				rec.Symbol,
				rec.Price.String(),
				rec.Change24h.StringFixed(2),
				rec.ThresholdPct.StringFixed(2),
				rec.Direction,
				strings.Join(rec.Channels, ","),
			)
		}
		return nil
	}

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(a.Out, "no samples found")
		return nil
	}

	fmt.Fprintln(writer, "Time (UTC)\tCurrency\tType\tPrice (USD)\t24h%\tSource time")
	for _, sample := range samples {
		updated := "-"
		if sample.LastUpdated != nil {
			updated = sample.LastUpdated.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			sample.SampledAt.UTC().Format(time.RFC3339),
			sample.CurrencyID,
			sample.Class,
			sample.Price.String(),
			sample.Change24h.StringFixed(2),
			updated,
		)
	}
	return nil
}
