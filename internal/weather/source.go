package weather

import (
	"context"
	"fmt"
	"time"
)

// Source binds a Provider to the one tracked location and checks every reading it returns.
type Source struct {
	provider Provider
	location Location
}

// NewSource creates a Source for loc backed by p.
func NewSource(p Provider, loc Location) *Source {
	return &Source{provider: p, location: loc}
}

// Name returns the backing provider name.
func (s *Source) Name() string {
	return s.provider.Name()
}

// Location returns the tracked location.
func (s *Source) Location() Location {
	return s.location
}

// Read fetches the current reading for the tracked location.
func (s *Source) Read(ctx context.Context) (Reading, error) {
	r, err := s.provider.Fetch(ctx, s.location)
	if err != nil {
		return Reading{}, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	if err := r.Validate(); err != nil {
		return Reading{}, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if r.Provider == "" {
		r.Provider = s.provider.Name()
	}
	return r, nil
}
