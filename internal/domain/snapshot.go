package domain

import (
	"sort"
	"time"
)

// Entry joins a descriptor with its latest quote.
type Entry struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Symbol      string  `json:"symbol"`
	Class       Class   `json:"type"`
	Priority    int     `json:"priority"`
	Price       float64 `json:"price"`
	Change24h   float64 `json:"change24h"`
	LastUpdated int64   `json:"lastUpdated"`
}

// NewEntry merges a descriptor and a quote.
func NewEntry(d Descriptor, q Quote) Entry {
	return Entry{
		ID:          d.ID,
		Name:        d.Name,
		Symbol:      d.Symbol,
		Class:       d.Class,
		Priority:    d.Priority,
		Price:       q.Price,
		Change24h:   q.Change24h,
		LastUpdated: q.LastUpdated,
	}
}

// Quote extracts the quote part of the entry.
func (e Entry) Quote() Quote {
	return Quote{ID: e.ID, Price: e.Price, Change24h: e.Change24h, LastUpdated: e.LastUpdated}
}

// Snapshot is the read-only merged view handed to presenters.
type Snapshot struct {
	Entries []Entry   `json:"currencies"`
	TakenAt time.Time `json:"takenAt"`
}

// Len returns the number of entries.
func (s Snapshot) Len() int {
	return len(s.Entries)
}

// Clone returns a deep copy so callers can never alias coordinator state.
func (s Snapshot) Clone() Snapshot {
	entries := make([]Entry, len(s.Entries))
	copy(entries, s.Entries)
	return Snapshot{Entries: entries, TakenAt: s.TakenAt}
}

// Find returns the entry with the given id.
func (s Snapshot) Find(id string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// ByClass returns entries belonging to class, in snapshot order.
func (s Snapshot) ByClass(class Class) []Entry {
	out := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Class == class {
			out = append(out, e)
		}
	}
	return out
}

// WithPatched returns a copy where entries with matching ids are replaced.
// Unknown ids are ignored so the one-entry-per-descriptor invariant holds.
func (s Snapshot) WithPatched(patch []Entry) Snapshot {
	out := s.Clone()
	if len(patch) == 0 {
		return out
	}
	byID := make(map[string]Entry, len(patch))
	for _, e := range patch {
		byID[e.ID] = e
	}
	for i, e := range out.Entries {
		if p, ok := byID[e.ID]; ok {
			out.Entries[i] = p
		}
	}
	return out
}

// Sorted returns entries in display order: priority ascending, then price descending.
func (s Snapshot) Sorted() []Entry {
	return SortForDisplay(s.Entries)
}

// SortForDisplay orders a copy of entries by priority then descending price.
func SortForDisplay(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Price > out[j].Price
	})
	return out
}
