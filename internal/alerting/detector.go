package alerting

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"currencycheck/internal/domain"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Detector turns snapshots into price-move notifications. A currency alerts
// only once it has been seen before, when its 24h change exceeds the
// threshold, and at most once per cooldown.
type Detector struct {
	threshold float64
	cooldown  time.Duration

	mu        sync.Mutex
	lastPrice map[string]float64
	lastAlert map[string]time.Time
}

// NewDetector builds a detector. A non-positive threshold disables alerts.
func NewDetector(thresholdPct float64, cooldown time.Duration) *Detector {
	return &Detector{
		threshold: thresholdPct,
		cooldown:  cooldown,
		lastPrice: make(map[string]float64),
		lastAlert: make(map[string]time.Time),
	}
}

// Evaluate compares snap with the last-seen prices and records snap as seen.
func (d *Detector) Evaluate(snap domain.Snapshot, now time.Time) []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Notification
	for _, e := range snap.Entries {
		prev, seen := d.lastPrice[e.ID]
		if e.Price > 0 {
			d.lastPrice[e.ID] = e.Price
		}
		if d.threshold <= 0 || !seen || prev == 0 || e.Price == 0 {
			continue
		}
		if math.Abs(e.Change24h) <= d.threshold {
			continue
		}
		if last, ok := d.lastAlert[e.ID]; ok && now.Sub(last) < d.cooldown {
			continue
		}
		d.lastAlert[e.ID] = now

		direction := DirectionUp
		if e.Change24h < 0 {
			direction = DirectionDown
		}
		out = append(out, Notification{
			At:           now,
			CurrencyID:   e.ID,
			Symbol:       e.Symbol,
			Name:         e.Name,
			Price:        decimal.NewFromFloat(e.Price),
			Change24h:    decimal.NewFromFloat(e.Change24h).Round(2),
			ThresholdPct: decimal.NewFromFloat(d.threshold),
			Direction:    direction,
		})
	}
	return out
}
