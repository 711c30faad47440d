package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/snowfall-bets/internal/estimator"
	"github.com/i474232898/snowfall-bets/internal/weather"
)

var (
	// ErrNotFound is returned when no poll history is available.
	ErrNotFound = errors.New("no poll history")
)

// PollEntry is one successful poll as shown on the history endpoint.
type PollEntry struct {
	Timestamp        time.Time         `json:"timestamp"` // always UTC
	Provider         string            `json:"provider"`
	Reading          float64           `json:"reading"`
	Window           string            `json:"window"`
	Delta            float64           `json:"delta"`
	TotalAccumulated float64           `json:"totalAccumulated"`
	Condition        weather.Condition `json:"condition"`
}

// PollHistory is a concurrency-safe in-memory log of recent successful polls.
// It is a view for clients only; the estimator never reads it back.
type PollHistory struct {
	mu      sync.RWMutex
	entries []PollEntry

	// retention configuration
	maxHistory int           // max number of entries
	maxAge     time.Duration // optional max age for entries
}

// NewPollHistory creates a PollHistory with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewPollHistory(maxHistory int, maxAge time.Duration) *PollHistory {
	return &PollHistory{
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// ObservePoll records successful polls and ignores failed ones.
func (h *PollHistory) ObservePoll(res estimator.PollResult) {
	if res.Err != nil {
		return
	}
	h.Add(PollEntry{
		Timestamp:        res.At.UTC(),
		Provider:         res.Reading.Provider,
		Reading:          res.Reading.PrecipInches,
		Window:           res.Reading.Window,
		Delta:            res.Delta,
		TotalAccumulated: res.State.TotalAccumulated,
		Condition:        res.Reading.Condition,
	})
}

// Add appends an entry and enforces retention.
func (h *PollHistory) Add(entry PollEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)

	// Enforce retention by count.
	if h.maxHistory > 0 && len(h.entries) > h.maxHistory {
		over := len(h.entries) - h.maxHistory
		h.entries = append([]PollEntry(nil), h.entries[over:]...)
	}

	// Enforce retention by age.
	if h.maxAge > 0 {
		cutoff := time.Now().Add(-h.maxAge)
		i := 0
		for ; i < len(h.entries); i++ {
			if !h.entries[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			h.entries = h.entries[i:]
		}
	}
}

// Latest returns the most recent entry.
func (h *PollHistory) Latest() (PollEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return PollEntry{}, ErrNotFound
	}
	return h.entries[len(h.entries)-1], nil
}

// Recent returns up to limit entries, newest last. limit <= 0 returns all.
func (h *PollHistory) Recent(limit int) []PollEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if limit > 0 && len(h.entries) > limit {
		start = len(h.entries) - limit
	}
	out := make([]PollEntry, len(h.entries)-start)
	copy(out, h.entries[start:])
	return out
}

// Range returns all entries between from and to (inclusive).
func (h *PollHistory) Range(from, to time.Time) ([]PollEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []PollEntry
	for _, e := range h.entries {
		if !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			result = append(result, e)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
