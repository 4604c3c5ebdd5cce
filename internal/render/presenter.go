// Package render turns snapshots into something a person can look at.
package render

import (
	"sync"

	"currencycheck/internal/domain"
)

// Presenter receives snapshots from the refresh coordinator. Render replaces
// the whole view; Patch updates only the given entries in place.
type Presenter interface {
	Render(snap domain.Snapshot)
	Patch(entries []domain.Entry)
	ShowError(err error)
	ClearError()
}

// ErrorRenderer is implemented by presenters that can show a snapshot and
// its banner in one frame.
type ErrorRenderer interface {
	RenderWithError(snap domain.Snapshot, err error)
}

// Publish hands p a snapshot together with the cycle outcome. A nil err
// clears any banner.
func Publish(p Presenter, snap domain.Snapshot, err error) {
	if er, ok := p.(ErrorRenderer); ok {
		er.RenderWithError(snap, err)
		return
	}
	p.Render(snap)
	if err != nil {
		p.ShowError(err)
	} else {
		p.ClearError()
	}
}

// Holder keeps the latest snapshot and error for readers such as the HTTP API.
type Holder struct {
	mu      sync.RWMutex
	snap    domain.Snapshot
	has     bool
	err     error
	renders int
	patches int
}

// Render stores a copy of snap.
func (h *Holder) Render(snap domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snap = snap.Clone()
	h.has = true
	h.renders++
}

// Patch applies entries to the held snapshot.
func (h *Holder) Patch(entries []domain.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.has {
		return
	}
	h.snap = h.snap.WithPatched(entries)
	h.patches++
}

// ShowError records err.
func (h *Holder) ShowError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// ClearError forgets the last error.
func (h *Holder) ClearError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = nil
}

// Snapshot returns a copy of the held snapshot, if any was rendered.
func (h *Holder) Snapshot() (domain.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.has {
		return domain.Snapshot{}, false
	}
	return h.snap.Clone(), true
}

// Err returns the error currently shown, if any.
func (h *Holder) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Counts returns how many full renders and patches were received.
func (h *Holder) Counts() (renders, patches int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.renders, h.patches
}

// Multi fans every call out to each presenter in order.
type Multi []Presenter

func (m Multi) Render(snap domain.Snapshot) {
	for _, p := range m {
		p.Render(snap)
	}
}

func (m Multi) RenderWithError(snap domain.Snapshot, err error) {
	for _, p := range m {
		Publish(p, snap, err)
	}
}

func (m Multi) Patch(entries []domain.Entry) {
	for _, p := range m {
		p.Patch(entries)
	}
}

func (m Multi) ShowError(err error) {
	for _, p := range m {
		p.ShowError(err)
	}
}

func (m Multi) ClearError() {
	for _, p := range m {
		p.ClearError()
	}
}

var (
	_ Presenter = (*Holder)(nil)
	_ Presenter = Multi(nil)
	_ Presenter = (*Console)(nil)

	_ ErrorRenderer = Multi(nil)
	_ ErrorRenderer = (*Console)(nil)
)
