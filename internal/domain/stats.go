package domain

// volumeMultiplier turns a unit price into the rough volume estimate shown on the dashboard.
const volumeMultiplier = 1_000_000

// Mover identifies a currency and its 24h change.
type Mover struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Change24h float64 `json:"change24h"`
}

// Statistics are read-only aggregates computed after every merge.
type Statistics struct {
	TotalVolume float64 `json:"totalVolume"`
	TopGainer   *Mover  `json:"topGainer,omitempty"`
	TopLoser    *Mover  `json:"topLoser,omitempty"`
	Active      int     `json:"activeCurrencies"`
}

// ComputeStatistics derives aggregate figures from a snapshot. Only crypto
// entries contribute to volume and movers; Active counts every entry.
func ComputeStatistics(s Snapshot) Statistics {
	stats := Statistics{Active: s.Len()}
	if s.Len() == 0 {
		return stats
	}

	for _, e := range s.ByClass(ClassCrypto) {
		stats.TotalVolume += e.Price * volumeMultiplier

		if stats.TopGainer == nil || e.Change24h > stats.TopGainer.Change24h {
			stats.TopGainer = &Mover{ID: e.ID, Symbol: e.Symbol, Change24h: e.Change24h}
		}
		if stats.TopLoser == nil || e.Change24h < stats.TopLoser.Change24h {
			stats.TopLoser = &Mover{ID: e.ID, Symbol: e.Symbol, Change24h: e.Change24h}
		}
	}
	return stats
}
