// Package cache holds the per-class quote sets and the chart history cache.
package cache

import (
	"sync"
	"time"

	"currencycheck/internal/domain"
)

// Set is the last successful result for one class.
type Set struct {
	Class     domain.Class
	Quotes    []domain.Quote
	FetchedAt time.Time
	Validity  time.Duration
}

// Quote returns the quote for id if present.
func (s Set) Quote(id string) (domain.Quote, bool) {
	for _, q := range s.Quotes {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Quote{}, false
}

func (s Set) clone() Set {
	quotes := make([]domain.Quote, len(s.Quotes))
	copy(quotes, s.Quotes)
	s.Quotes = quotes
	return s
}

// Tiered keeps one Set per class, each with its own validity window.
type Tiered struct {
	mu       sync.RWMutex
	validity map[domain.Class]time.Duration
	sets     map[domain.Class]*Set
}

// NewTiered builds an empty cache. Classes without a validity are never valid.
func NewTiered(validity map[domain.Class]time.Duration) *Tiered {
	v := make(map[domain.Class]time.Duration, len(validity))
	for class, d := range validity {
		v[class] = d
	}
	return &Tiered{validity: v, sets: make(map[domain.Class]*Set)}
}

// IsValid reports whether the set for class is younger than its validity window.
func (t *Tiered) IsValid(class domain.Class, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set, ok := t.sets[class]
	if !ok {
		return false
	}
	return now.Sub(set.FetchedAt) < set.Validity
}

// Get returns a copy of the set for class, stale or not.
func (t *Tiered) Get(class domain.Class) (Set, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set, ok := t.sets[class]
	if !ok {
		return Set{}, false
	}
	return set.clone(), true
}

// Store replaces the set for class wholesale and stamps it with now.
func (t *Tiered) Store(class domain.Class, quotes []domain.Quote, now time.Time) {
	cp := make([]domain.Quote, len(quotes))
	copy(cp, quotes)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sets[class] = &Set{
		Class:     class,
		Quotes:    cp,
		FetchedAt: now,
		Validity:  t.validity[class],
	}
}

// StoreMerged builds the new set from the previous one and stores it in a
// single step, so a concurrent Patch lands either before merge reads prev or
// after the new set is in place. prev holds nil quotes when nothing was stored.
func (t *Tiered) StoreMerged(class domain.Class, merge func(prev []domain.Quote) []domain.Quote, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var prev []domain.Quote
	if set, ok := t.sets[class]; ok {
		prev = set.clone().Quotes
	}
	t.sets[class] = &Set{
		Class:     class,
		Quotes:    merge(prev),
		FetchedAt: now,
		Validity:  t.validity[class],
	}
}

// Patch overwrites matching quotes by id and leaves FetchedAt alone, so a
// partial update never extends the validity window. It returns the number of
// quotes replaced; ids absent from the set are ignored.
func (t *Tiered) Patch(class domain.Class, quotes []domain.Quote) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.sets[class]
	if !ok || len(quotes) == 0 {
		return 0
	}

	byID := make(map[string]domain.Quote, len(quotes))
	for _, q := range quotes {
		byID[q.ID] = q
	}

	patched := 0
	for i, q := range set.Quotes {
		if next, ok := byID[q.ID]; ok {
			set.Quotes[i] = next
			patched++
		}
	}
	return patched
}
