package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"currencycheck/internal/alerting"
	"currencycheck/internal/domain"
)

// QuoteSample is one persisted observation of a currency price.
type QuoteSample struct {
	SampledAt   time.Time
	CurrencyID  string
	Class       domain.Class
	Price       decimal.Decimal
	Change24h   decimal.Decimal
	LastUpdated *time.Time
	CreatedAt   time.Time
}

// AlertRecord captures an emitted price alert for auditing.
type AlertRecord struct {
	ID           int64
	CurrencyID   string
	Symbol       string
	Price        decimal.Decimal
	Change24h    decimal.Decimal
	ThresholdPct decimal.Decimal
	Direction    string
	Channels     []string
	AlertedAt    time.Time
	CreatedAt    time.Time
}

// SamplesFromSnapshot converts priced entries into samples stamped with at.
// Placeholders (zero price) are skipped.
func SamplesFromSnapshot(snap domain.Snapshot, at time.Time) []QuoteSample {
	sampledAt := at.UTC().Truncate(time.Second)
	out := make([]QuoteSample, 0, snap.Len())
	for _, e := range snap.Entries {
		if e.Price <= 0 {
			continue
		}
		sample := QuoteSample{
			SampledAt:  sampledAt,
			CurrencyID: e.ID,
			Class:      e.Class,
			Price:      decimal.NewFromFloat(e.Price),
			Change24h:  decimal.NewFromFloat(e.Change24h),
		}
		if e.LastUpdated > 0 {
			updated := time.Unix(e.LastUpdated, 0).UTC()
			sample.LastUpdated = &updated
		}
		out = append(out, sample)
	}
	return out
}

// AlertRecordFromNotification prepares a notification for persistence.
func AlertRecordFromNotification(note alerting.Notification, channels []string) AlertRecord {
	return AlertRecord{
		CurrencyID:   note.CurrencyID,
		Symbol:       note.Symbol,
		Price:        note.Price,
		Change24h:    note.Change24h,
		ThresholdPct: note.ThresholdPct,
		Direction:    note.Direction,
		Channels:     channels,
		AlertedAt:    note.At.UTC(),
	}
}
