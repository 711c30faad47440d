package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedReading is returned when a provider answered but the payload is unusable.
var ErrMalformedReading = errors.New("malformed provider reading")

// Provider abstracts a weather data source (WeatherAPI, OpenWeatherMap, Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (Reading, error)
}

// Validate fails closed on values that must never reach the accumulator.
func (r Reading) Validate() error {
	switch {
	case math.IsNaN(r.PrecipInches), math.IsInf(r.PrecipInches, 0):
		return fmt.Errorf("%w: precipitation is not a finite number", ErrMalformedReading)
	case r.PrecipInches < 0:
		return fmt.Errorf("%w: negative precipitation %v", ErrMalformedReading, r.PrecipInches)
	}
	return nil
}
