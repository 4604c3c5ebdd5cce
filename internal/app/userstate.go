package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"currencycheck/internal/calc"
	"currencycheck/internal/domain"
	"currencycheck/internal/prefs"
)

// ListFavorites prints the favorite currencies.
func (a *App) ListFavorites() error {
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	favorites := userPrefs.Favorites()
	if len(favorites) == 0 {
		fmt.Fprintln(a.Out, "no favorite currencies")
		return nil
	}
	for _, id := range favorites {
		if d, ok := a.Catalog.Lookup(id); ok {
			fmt.Fprintf(a.Out, "%s\t%s\n", d.Symbol, d.Name)
			continue
		}
		fmt.Fprintf(a.Out, "%s\t(no longer tracked)\n", id)
	}
	return nil
}

// ToggleFavorite adds or removes a favorite.
func (a *App) ToggleFavorite(currency string) error {
	desc, err := a.resolve(currency)
	if err != nil {
		return err
	}
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	added, err := userPrefs.ToggleFavorite(desc.ID)
	if err != nil {
		return err
	}
	if added {
		fmt.Fprintf(a.Out, "%s added to favorites\n", desc.Symbol)
	} else {
		fmt.Fprintf(a.Out, "%s removed from favorites\n", desc.Symbol)
	}
	return nil
}

// Portfolio prints every holding valued at current prices.
func (a *App) Portfolio(ctx context.Context) error {
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	holdings := userPrefs.Holdings()
	if len(holdings) == 0 {
		fmt.Fprintln(a.Out, "portfolio is empty")
		return nil
	}

	snap, _, err := a.snapshotOnce(ctx, coordinatorDeps{})
	if err != nil {
		return err
	}
	a.printValuation(calc.Valuate(holdings, snap))
	return nil
}

func (a *App) printValuation(v calc.Valuation) {
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tSymbol\tAmount\tBuy price\tPrice\tValue\tProfit\tProfit%\tAdded")
	for _, p := range v.Positions {
		fmt.Fprintf(writer, "%d\t%s\t%g\t%s\t%s\t%s\t%s\t%s%%\t%s\n",
			p.Index+1,
			p.Holding.Symbol,
			p.Holding.Amount,
			domain.FormatPrice(p.Holding.BuyPrice),
			domain.FormatPrice(p.CurrentPrice.InexactFloat64()),
			p.CurrentValue.StringFixed(2),
			p.Profit.StringFixed(2),
			p.ProfitPercent.StringFixed(2),
			p.Holding.Added().Format(time.DateOnly),
		)
	}
	writer.Flush()

	fmt.Fprintf(a.Out, "Total value %s  Invested %s  Profit %s  Assets %d\n",
		domain.FormatLargeNumber(v.TotalValue.InexactFloat64()),
		domain.FormatLargeNumber(v.TotalInvested.InexactFloat64()),
		v.TotalProfit.StringFixed(2),
		v.Assets,
	)
}

// AddHoldingOptions configure portfolio add. A zero BuyPrice means the
// current price.
type AddHoldingOptions struct {
	Currency string
	Amount   float64
	BuyPrice float64
}

// AddHolding appends a holding to the portfolio.
func (a *App) AddHolding(ctx context.Context, opts AddHoldingOptions) error {
	desc, err := a.resolve(opts.Currency)
	if err != nil {
		return err
	}
	if opts.Amount <= 0 {
		return calc.ErrInvalidAmount
	}
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}

	buyPrice := opts.BuyPrice
	if buyPrice <= 0 {
		snap, _, err := a.snapshotOnce(ctx, coordinatorDeps{})
		if err != nil {
			return err
		}
		entry, ok := snap.Find(desc.ID)
		if !ok || entry.Price <= 0 {
			return fmt.Errorf("%w: %s", calc.ErrZeroPrice, desc.Symbol)
		}
		buyPrice = entry.Price
	}

	h := domain.Holding{
		ID:       desc.ID,
		Name:     desc.Name,
		Symbol:   desc.Symbol,
		Amount:   opts.Amount,
		BuyPrice: buyPrice,
		AddedAt:  time.Now().UnixMilli(),
	}
	if err := userPrefs.AddHolding(h); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "added %g %s at %s\n", h.Amount, h.Symbol, domain.FormatPrice(h.BuyPrice))
	return nil
}

// RemoveHolding deletes the holding at position (1-based, as listed).
func (a *App) RemoveHolding(position int) error {
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	if err := userPrefs.RemoveHolding(position - 1); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "removed holding #%d\n", position)
	return nil
}

// ShowPrefs prints the current preferences.
func (a *App) ShowPrefs() error {
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "file:      %s\n", userPrefs.Path())
	fmt.Fprintf(a.Out, "theme:     %s\n", userPrefs.Theme())
	fmt.Fprintf(a.Out, "sound:     %t\n", userPrefs.SoundEnabled())
	fmt.Fprintf(a.Out, "favorites: %d\n", len(userPrefs.Favorites()))
	fmt.Fprintf(a.Out, "holdings:  %d\n", len(userPrefs.Holdings()))
	return nil
}

// SetTheme stores the display theme.
func (a *App) SetTheme(v string) error {
	theme, err := prefs.ParseTheme(v)
	if err != nil {
		return err
	}
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	if err := userPrefs.SetTheme(theme); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "theme set to %s\n", theme)
	return nil
}

// ToggleSound flips alert sounds.
func (a *App) ToggleSound() error {
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	enabled, err := userPrefs.ToggleSound()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "sound enabled: %t\n", enabled)
	return nil
}
