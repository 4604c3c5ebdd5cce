package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"currencycheck/internal/domain"
	"currencycheck/internal/search"
	"currencycheck/internal/service"
)

// Dashboard is the coordinator surface the API needs.
type Dashboard interface {
	Snapshot() (domain.Snapshot, bool)
	Statistics() domain.Statistics
	LastError() error
	LastCycle() service.CycleResult
	Refresh(ctx context.Context, trigger service.Trigger, force bool) (service.CycleResult, error)
	SetVisible(ctx context.Context, visible bool) (bool, error)
}

// Favorites supplies the ids used by the favorites filter.
type Favorites interface {
	Favorites() []string
}

// Handler serves the API endpoints.
type Handler struct {
	dash      Dashboard
	favorites Favorites
	logger    zerolog.Logger
}

// NewHandler builds a Handler. favorites may be nil.
func NewHandler(dash Dashboard, favorites Favorites, logger zerolog.Logger) *Handler {
	return &Handler{dash: dash, favorites: favorites, logger: logger.With().Str("component", "api").Logger()}
}

type errorResponse struct {
	Error string `json:"error"`
}

type snapshotResponse struct {
	TakenAt     time.Time      `json:"takenAt"`
	Currencies  []domain.Entry `json:"currencies"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Error       string         `json:"error,omitempty"`
}

type cycleResponse struct {
	ID        string         `json:"id"`
	Trigger   string         `json:"trigger"`
	Fetched   []domain.Class `json:"fetched"`
	FromCache []domain.Class `json:"fromCache"`
	Published bool           `json:"published"`
	Deferred  bool           `json:"deferred"`
	Error     string         `json:"error,omitempty"`
}

type visibilityResponse struct {
	Visible   bool   `json:"visible"`
	Refreshed bool   `json:"refreshed"`
	Error     string `json:"error,omitempty"`
}

// GetSnapshot returns the current snapshot in display order, optionally
// narrowed by ?filter=all|favorites and ?q=.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	mode, err := search.ParseMode(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := h.dash.Snapshot()
	if !ok {
		msg := "no snapshot published yet"
		if lastErr := h.dash.LastError(); lastErr != nil {
			msg = lastErr.Error()
		}
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}

	var favorites []string
	if h.favorites != nil {
		favorites = h.favorites.Favorites()
	}
	entries := search.Filter(snap.Sorted(), favorites, mode)
	result := search.Query(entries, r.URL.Query().Get("q"))

	resp := snapshotResponse{
		TakenAt:     snap.TakenAt.UTC(),
		Currencies:  result.Entries,
		Suggestions: result.Suggestions,
	}
	if lastErr := h.dash.LastError(); lastErr != nil {
		resp.Error = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStats returns the aggregates of the current snapshot.
func (h *Handler) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dash.Statistics())
}

// Refresh runs a manual cycle. ?force=true bypasses the cache.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	force, err := parseBool(r.URL.Query().Get("force"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "force must be a boolean")
		return
	}
	res, err := h.dash.Refresh(r.Context(), service.TriggerManual, force)
	resp := cycleResponse{
		ID:        res.ID,
		Trigger:   string(res.Trigger),
		Fetched:   nonNil(res.Fetched),
		FromCache: nonNil(res.FromCache),
		Published: res.Published,
		Deferred:  res.Deferred,
	}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		if !res.Published {
			status = http.StatusBadGateway
		}
		h.logger.Warn().Err(err).Str("cycle", res.ID).Msg("manual refresh failed")
	}
	writeJSON(w, status, resp)
}

// SetVisibility maps ?hidden=true|false onto the coordinator.
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("hidden")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "hidden is required")
		return
	}
	hidden, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "hidden must be a boolean")
		return
	}
	refreshed, err := h.dash.SetVisible(r.Context(), !hidden)
	resp := visibilityResponse{Visible: !hidden, Refreshed: refreshed}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func nonNil(classes []domain.Class) []domain.Class {
	if classes == nil {
		return []domain.Class{}
	}
	return classes
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
