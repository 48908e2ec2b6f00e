// Package timewindow implements the anchor-relative, fixed-width window
// numbering used to bucket flows by (source IP, time window) for the
// per-window comparison view.
package timewindow

import "sync"

// DefaultWidthSeconds is the width New falls back to when it is given a
// non-positive width.
const DefaultWidthSeconds = 3600

// Index maps timestamps to window numbers relative to an anchor, and
// tracks which window numbers the ground-truth parser has registered.
// Only the ground-truth parser may register windows; tool parsers may
// only consume registrations.
type Index struct {
	anchor float64
	width  float64

	mu         sync.Mutex
	registered map[int]bool
}

// New constructs an Index anchored at the given timestamp (the first
// ground-truth flow's timestamp) with the given window width in seconds.
func New(anchor float64, width float64) *Index {
	if width <= 0 {
		width = DefaultWidthSeconds
	}
	return &Index{
		anchor:     anchor,
		width:      width,
		registered: make(map[int]bool),
	}
}

// WindowOf returns the window number a timestamp falls into. Window k
// spans [anchor + (k-1)*width, anchor + k*width): left-closed,
// right-open. A timestamp before the anchor yields a number ≤ 0; such
// numbers are preserved (never registered, discarded by the aligner).
func (idx *Index) WindowOf(ts float64) int {
	offset := ts - idx.anchor
	// floor division so timestamps before the anchor produce <= 0.
	k := int(offset / idx.width)
	if offset < 0 && float64(k)*idx.width != offset {
		k--
	}
	return k + 1
}

// Bounds returns the half-open interval [start, end) for window k.
func (idx *Index) Bounds(k int) (start, end float64) {
	start = idx.anchor + float64(k-1)*idx.width
	end = start + idx.width
	return start, end
}

// RegisterTW idempotently registers window k. Returns true iff this call
// newly registered it.
func (idx *Index) RegisterTW(k int) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.registered[k] {
		return false
	}
	idx.registered[k] = true
	return true
}

// IsRegistered reports whether window k has been registered.
func (idx *Index) IsRegistered(k int) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.registered[k]
}

// RegisteredCount returns the number of distinct registered windows.
func (idx *Index) RegisteredCount() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.registered)
}

// Width returns the configured window width in seconds.
func (idx *Index) Width() float64 {
	return idx.width
}

// Anchor returns the timestamp the index is anchored at.
func (idx *Index) Anchor() float64 {
	return idx.anchor
}
