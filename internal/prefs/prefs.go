// Package prefs persists user-local state: favorites, portfolio, theme and sound.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"currencycheck/internal/domain"
)

const filePermissions = 0o600

// Theme is the display theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var (
	ErrInvalidTheme   = errors.New("theme must be light or dark")
	ErrInvalidHolding = errors.New("holding needs an id, a positive amount and a positive buy price")
	ErrNoSuchHolding  = errors.New("no holding at that index")
)

// ParseTheme validates a theme name.
func ParseTheme(v string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(v))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, v)
	}
}

type state struct {
	Favorites    []string         `json:"favorites"`
	Portfolio    []domain.Holding `json:"portfolio"`
	Theme        Theme            `json:"theme"`
	SoundEnabled *bool            `json:"soundEnabled,omitempty"`
}

func defaults() state {
	return state{Favorites: []string{}, Portfolio: []domain.Holding{}, Theme: ThemeLight}
}

// Store is a JSON-file backed preference store. Every mutation rewrites the
// file atomically.
type Store struct {
	path   string
	logger zerolog.Logger

	mu sync.RWMutex
	st state
}

// DefaultPath returns ~/.currencycheck/prefs.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".currencycheck", "prefs.json")
	}
	return filepath.Join(home, ".currencycheck", "prefs.json")
}

// Open loads the store at path. A missing file yields defaults; a malformed
// one is moved aside and also yields defaults.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	s := &Store{
		path:   path,
		logger: logger.With().Str("component", "prefs").Logger(),
		st:     defaults(),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		corrupt := fmt.Sprintf("%s.corrupt.%d", path, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(path, corrupt); renameErr != nil {
			s.logger.Warn().Err(err).AnErr("rename_err", renameErr).Msg("malformed prefs file, using defaults")
		} else {
			s.logger.Warn().Err(err).Str("moved_to", corrupt).Msg("malformed prefs file, using defaults")
		}
		return s, nil
	}
	if st.Favorites == nil {
		st.Favorites = []string{}
	}
	if st.Portfolio == nil {
		st.Portfolio = []domain.Holding{}
	}
	if _, err := ParseTheme(string(st.Theme)); err != nil {
		st.Theme = ThemeLight
	}
	s.st = st
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Favorites returns favorite ids in insertion order.
func (s *Store) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.st.Favorites))
	copy(out, s.st.Favorites)
	return out
}

// IsFavorite reports whether id is a favorite.
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.st.Favorites, id) >= 0
}

// ToggleFavorite adds or removes id and reports whether it is now a favorite.
func (s *Store) ToggleFavorite(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st
	added := false
	if i := indexOf(s.st.Favorites, id); i >= 0 {
		next.Favorites = append(append([]string{}, s.st.Favorites[:i]...), s.st.Favorites[i+1:]...)
	} else {
		next.Favorites = append(append([]string{}, s.st.Favorites...), id)
		added = true
	}
	if err := s.commit(next); err != nil {
		return false, err
	}
	return added, nil
}

// Holdings returns the portfolio in insertion order.
func (s *Store) Holdings() []domain.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Holding, len(s.st.Portfolio))
	copy(out, s.st.Portfolio)
	return out
}

// AddHolding appends h, stamping AddedAt when unset.
func (s *Store) AddHolding(h domain.Holding) error {
	if h.ID == "" || h.Amount <= 0 || h.BuyPrice <= 0 {
		return ErrInvalidHolding
	}
	if h.AddedAt == 0 {
		h.AddedAt = time.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st
	next.Portfolio = append(append([]domain.Holding{}, s.st.Portfolio...), h)
	return s.commit(next)
}

// RemoveHolding deletes the holding at index.
func (s *Store) RemoveHolding(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.st.Portfolio) {
		return fmt.Errorf("%w: %d", ErrNoSuchHolding, index)
	}
	next := s.st
	next.Portfolio = append(append([]domain.Holding{}, s.st.Portfolio[:index]...), s.st.Portfolio[index+1:]...)
	return s.commit(next)
}

// Theme returns the current theme.
func (s *Store) Theme() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Theme
}

// SetTheme persists t.
func (s *Store) SetTheme(t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st
	next.Theme = t
	return s.commit(next)
}

// SoundEnabled defaults to true until toggled.
func (s *Store) SoundEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.SoundEnabled == nil || *s.st.SoundEnabled
}

// ToggleSound flips the sound setting and returns the new value.
func (s *Store) ToggleSound() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enabled := !(s.st.SoundEnabled == nil || *s.st.SoundEnabled)
	next := s.st
	next.SoundEnabled = &enabled
	if err := s.commit(next); err != nil {
		return false, err
	}
	return enabled, nil
}

// commit writes next and adopts it only once the write succeeded. Callers hold mu.
func (s *Store) commit(next state) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	if err := writeAtomic(s.path, data, filePermissions); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	s.st = next
	return nil
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
