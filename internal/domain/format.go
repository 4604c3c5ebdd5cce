package domain

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
)

// FormatPrice renders a USD price with precision scaled to its magnitude.
func FormatPrice(price float64) string {
	switch {
	case price >= 1000:
		return humanize.FormatFloat("#,###.##", price)
	case price >= 1:
		return strconv.FormatFloat(price, 'f', 4, 64)
	case price >= 0.01:
		return strconv.FormatFloat(price, 'f', 6, 64)
	default:
		return strconv.FormatFloat(price, 'f', 8, 64)
	}
}

// FormatEntryPrice formats crypto with FormatPrice and fiat with four decimals.
func FormatEntryPrice(e Entry) string {
	if e.Class == ClassFiat {
		return strconv.FormatFloat(e.Price, 'f', 4, 64)
	}
	return FormatPrice(e.Price)
}

// FormatChange renders a signed percentage, e.g. "+1.25%".
func FormatChange(change float64) string {
	if change > 0 {
		return fmt.Sprintf("+%.2f%%", change)
	}
	return fmt.Sprintf("%.2f%%", change)
}

// FormatLargeNumber abbreviates large dollar amounts ($1.2T, $3.4B, ...).
func FormatLargeNumber(n float64) string {
	switch {
	case n >= 1e12:
		return fmt.Sprintf("$%.1fT", n/1e12)
	case n >= 1e9:
		return fmt.Sprintf("$%.1fB", n/1e9)
	case n >= 1e6:
		return fmt.Sprintf("$%.1fM", n/1e6)
	case n >= 1e3:
		return fmt.Sprintf("$%.1fK", n/1e3)
	default:
		return fmt.Sprintf("$%.0f", n)
	}
}
