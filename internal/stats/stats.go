// Package stats counts and categorizes the external catalog calls made during one pipeline invocation.
//
// A [Tracker] is created per request or per tick and discarded afterwards.
// It is safe for the concurrent fetches issued inside one invocation; it is not a cross-process counter.
package stats

import (
	"sync"
	"time"
)

// Category groups catalog calls by the kind of entity they fetch.
type Category string

const (
	CategoryArtist         Category = "artist"
	CategoryArtists        Category = "artists"
	CategoryRelatedArtists Category = "related_artists"
	CategoryTopTracks      Category = "top_tracks"
	CategoryTrack          Category = "track"
	CategorySearch         Category = "search"
	CategoryOther          Category = "other"
)

// Observer receives every recorded call, typically a process-wide metrics collector.
type Observer interface {
	ObserveCatalogCall(category string, ok bool, d time.Duration)
}

// CategoryStats holds the counters of one category.
type CategoryStats struct {
	Calls      int   `json:"calls"`
	Failures   int   `json:"failures"`
	DurationMS int64 `json:"durationMs"`
}

// Snapshot is an immutable copy of a tracker's counters.
type Snapshot struct {
	Total      int                        `json:"total"`
	Failures   int                        `json:"failures"`
	DurationMS int64                      `json:"durationMs"`
	ByCategory map[Category]CategoryStats `json:"byCategory"`
}

// Tracker is the per-invocation call counter.
type Tracker struct {
	mu       sync.Mutex
	counts   map[Category]*CategoryStats
	observer Observer
}

// NewTracker returns an empty tracker. observer may be nil.
func NewTracker(observer Observer) *Tracker {
	return &Tracker{
		counts:   make(map[Category]*CategoryStats),
		observer: observer,
	}
}

// Record counts one call. A nil tracker ignores the call.
func (t *Tracker) Record(category Category, err error, d time.Duration) {
	if t == nil {
		return
	}

	t.mu.Lock()
	c, ok := t.counts[category]
	if !ok {
		c = &CategoryStats{}
		t.counts[category] = c
	}
	c.Calls++
	if err != nil {
		c.Failures++
	}
	c.DurationMS += d.Milliseconds()
	t.mu.Unlock()

	if t.observer != nil {
		t.observer.ObserveCatalogCall(string(category), err == nil, d)
	}
}

// Time records the call made by fn and returns its error.
func (t *Tracker) Time(category Category, fn func() error) error {
	start := time.Now()
	err := fn()
	t.Record(category, err, time.Since(start))
	return err
}

// Total returns the number of recorded calls.
func (t *Tracker) Total() int {
	return t.Snapshot().Total
}

// Snapshot copies the current counters.
func (t *Tracker) Snapshot() Snapshot {
	snap := Snapshot{ByCategory: map[Category]CategoryStats{}}
	if t == nil {
		return snap
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for cat, c := range t.counts {
		snap.ByCategory[cat] = *c
		snap.Total += c.Calls
		snap.Failures += c.Failures
		snap.DurationMS += c.DurationMS
	}
	return snap
}
