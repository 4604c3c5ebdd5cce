package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"currencycheck/internal/calc"
)

// ConvertOptions configure the convert command.
type ConvertOptions struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// Convert prints amount of From expressed in To at current prices.
func (a *App) Convert(ctx context.Context, opts ConvertOptions) error {
	from, err := a.resolve(opts.From)
	if err != nil {
		return err
	}
	to, err := a.resolve(opts.To)
	if err != nil {
		return err
	}
	if !opts.Amount.IsPositive() {
		return calc.ErrInvalidAmount
	}

	snap, _, err := a.snapshotOnce(ctx, coordinatorDeps{})
	if err != nil {
		return err
	}
	conv, err := calc.Convert(snap, from.ID, to.ID, opts.Amount)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "%s %s = %s %s\n",
		conv.Amount.String(), conv.From.Symbol,
		formatAmount(conv.Result), conv.To.Symbol)
	fmt.Fprintf(a.Out, "1 %s = %s %s\n", conv.From.Symbol, formatAmount(conv.Rate), conv.To.Symbol)
	return nil
}

// formatAmount keeps two decimals for large values and eight for small ones.
func formatAmount(d decimal.Decimal) string {
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.StringFixed(2)
	}
	return d.StringFixed(8)
}
