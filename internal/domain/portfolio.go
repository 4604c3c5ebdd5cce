package domain

import "time"

// Holding is one position in the local, annotation-only portfolio.
type Holding struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Amount   float64 `json:"amount"`
	BuyPrice float64 `json:"buyPrice"`
	// AddedAt is milliseconds since epoch, matching the export format.
	AddedAt int64 `json:"addedAt"`
}

// Added returns AddedAt as a time.
func (h Holding) Added() time.Time {
	return time.UnixMilli(h.AddedAt)
}
