// Package search narrows snapshot entries for display.
package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"currencycheck/internal/domain"
)

// Mode selects which entries are shown.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeFavorites Mode = "favorites"
)

const (
	maxSuggestionDistance = 2
	maxSuggestions        = 5
)

// ParseMode validates a filter name. Empty means all.
func ParseMode(v string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(v))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeFavorites:
		return ModeFavorites, nil
	default:
		return "", fmt.Errorf("unknown filter %q (want all|favorites)", v)
	}
}

// Filter keeps every entry in ModeAll, or only favorites in ModeFavorites.
func Filter(entries []domain.Entry, favorites []string, mode Mode) []domain.Entry {
	if mode != ModeFavorites {
		out := make([]domain.Entry, len(entries))
		copy(out, entries)
		return out
	}
	fav := make(map[string]struct{}, len(favorites))
	for _, id := range favorites {
		fav[id] = struct{}{}
	}
	out := make([]domain.Entry, 0, len(favorites))
	for _, e := range entries {
		if _, ok := fav[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Result holds the matches of a query, plus close symbols when nothing matched.
type Result struct {
	Entries     []domain.Entry `json:"currencies"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

// Query matches q case-insensitively against name or symbol. A blank query
// matches everything.
func Query(entries []domain.Entry, q string) Result {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		out := make([]domain.Entry, len(entries))
		copy(out, entries)
		return Result{Entries: out}
	}

	var matches []domain.Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.Symbol), q) {
			matches = append(matches, e)
		}
	}
	if len(matches) > 0 {
		return Result{Entries: matches}
	}
	return Result{Entries: []domain.Entry{}, Suggestions: suggest(entries, q)}
}

type candidate struct {
	symbol string
	dist   int
}

func suggest(entries []domain.Entry, q string) []string {
	var cands []candidate
	for _, e := range entries {
		d := levenshtein.ComputeDistance(q, strings.ToLower(e.Symbol))
		if nd := levenshtein.ComputeDistance(q, strings.ToLower(e.Name)); nd < d {
			d = nd
		}
		if d <= maxSuggestionDistance {
			cands = append(cands, candidate{symbol: e.Symbol, dist: d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].symbol < cands[j].symbol
	})

	seen := make(map[string]struct{})
	out := make([]string, 0, maxSuggestions)
	for _, c := range cands {
		if _, ok := seen[c.symbol]; ok {
			continue
		}
		seen[c.symbol] = struct{}{}
		out = append(out, c.symbol)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
