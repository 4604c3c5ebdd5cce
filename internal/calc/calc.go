// Package calc converts between tracked currencies and values the local portfolio.
package calc

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"currencycheck/internal/domain"
)

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrZeroPrice       = errors.New("currency has no price yet")
)

var hundred = decimal.NewFromInt(100)

// Conversion is the result of converting Amount of From into To.
type Conversion struct {
	From   domain.Entry
	To     domain.Entry
	Amount decimal.Decimal
	Rate   decimal.Decimal
	Result decimal.Decimal
}

// Convert computes amount × from.price / to.price using snapshot prices.
func Convert(snap domain.Snapshot, fromID, toID string, amount decimal.Decimal) (Conversion, error) {
	if !amount.IsPositive() {
		return Conversion{}, ErrInvalidAmount
	}
	from, ok := snap.Find(fromID)
	if !ok {
		return Conversion{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, fromID)
	}
	to, ok := snap.Find(toID)
	if !ok {
		return Conversion{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, toID)
	}
	if to.Price <= 0 {
		return Conversion{}, fmt.Errorf("%w: %s", ErrZeroPrice, toID)
	}

	fromPrice := decimal.NewFromFloat(from.Price)
	toPrice := decimal.NewFromFloat(to.Price)
	rate := fromPrice.DivRound(toPrice, 16)

	return Conversion{
		From:   from,
		To:     to,
		Amount: amount,
		Rate:   rate,
		Result: amount.Mul(fromPrice).DivRound(toPrice, 16),
	}, nil
}

// Position is a valued holding.
type Position struct {
	Index         int
	Holding       domain.Holding
	CurrentPrice  decimal.Decimal
	CurrentValue  decimal.Decimal
	Invested      decimal.Decimal
	Profit        decimal.Decimal
	ProfitPercent decimal.Decimal
}

// Valuation summarises the portfolio at snapshot prices.
type Valuation struct {
	Positions     []Position
	TotalValue    decimal.Decimal
	TotalInvested decimal.Decimal
	TotalProfit   decimal.Decimal
	Assets        int
}

// Valuate values every holding whose currency is present in snap. Holdings
// for currencies missing from the snapshot are skipped but still counted in
// Assets. Index refers to the holding's position in the input slice.
func Valuate(holdings []domain.Holding, snap domain.Snapshot) Valuation {
	v := Valuation{
		TotalValue:    decimal.Zero,
		TotalInvested: decimal.Zero,
		TotalProfit:   decimal.Zero,
		Assets:        len(holdings),
	}
	for i, h := range holdings {
		entry, ok := snap.Find(h.ID)
		if !ok {
			continue
		}
		amount := decimal.NewFromFloat(h.Amount)
		price := decimal.NewFromFloat(entry.Price)
		current := amount.Mul(price)
		invested := amount.Mul(decimal.NewFromFloat(h.BuyPrice))
		profit := current.Sub(invested)

		pct := decimal.Zero
		if invested.IsPositive() {
			pct = profit.Div(invested).Mul(hundred)
		}

		v.Positions = append(v.Positions, Position{
			Index:         i,
			Holding:       h,
			CurrentPrice:  price,
			CurrentValue:  current,
			Invested:      invested,
			Profit:        profit,
			ProfitPercent: pct,
		})
		v.TotalValue = v.TotalValue.Add(current)
		v.TotalInvested = v.TotalInvested.Add(invested)
		v.TotalProfit = v.TotalProfit.Add(profit)
	}
	return v
}
