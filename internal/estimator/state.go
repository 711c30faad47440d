package estimator

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrSourceUnavailable is returned by Poll when no usable reading could be fetched.
	ErrSourceUnavailable = errors.New("weather source unavailable")
	// ErrPersistenceFailure is returned when the updated state could not be written durably.
	ErrPersistenceFailure = errors.New("estimator state not persisted")
	// ErrMalformedState is returned by a StateStore when persisted state cannot be decoded.
	ErrMalformedState = errors.New("malformed persisted state")
	// ErrNotFound is returned by a StateStore when nothing has been persisted yet.
	ErrNotFound = errors.New("persisted state not found")
	// ErrNotStarted is returned by Poll before Start has loaded the state.
	ErrNotStarted = errors.New("estimator not started")
)

// Phase is the lifecycle phase of an Estimator.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseTracking      Phase = "tracking"
)

// State is the persisted accumulator record.
type State struct {
	TotalAccumulated float64   `json:"totalAccumulated"`
	LastReading      float64   `json:"lastReading"`
	UpdatedAt        time.Time `json:"updatedAt,omitempty"`
}

// Validate reports ErrMalformedState for values no poll could have produced.
func (s State) Validate() error {
	for name, v := range map[string]float64{
		"totalAccumulated": s.TotalAccumulated,
		"lastReading":      s.LastReading,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrMalformedState, name, v)
		}
	}
	return nil
}

// Apply feeds one raw reading into s and returns the next state and the amount added.
//
// Only a strict increase over the previous raw reading accumulates. A drop (for
// example a provider resetting its daily counter) adds nothing, but it still
// becomes the baseline for the next delta.
func Apply(s State, reading float64) (State, float64) {
	var delta float64
	if reading > s.LastReading {
		delta = reading - s.LastReading
		s.TotalAccumulated += delta
	}
	s.LastReading = reading
	return s, delta
}
