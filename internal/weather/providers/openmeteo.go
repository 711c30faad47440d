package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/snowfall-bets/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It reads today's precipitation sum, which Open-Meteo can report in inches directly.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker

	// geocode resolves a city to coordinates when the location has none.
	geocode func(loc weather.Location) (lat, lon float64, err error)

	mu      sync.Mutex
	coords  map[string][2]float64
	lookups map[string]*geocodeLookup
}

// NewOpenMeteoProvider creates the provider. Open-Meteo itself needs no key, but
// geocoding a city without configured coordinates needs a Google API key.
func NewOpenMeteoProvider(client *http.Client, geocoderAPIKey string) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff,
		},
		circuit: newCircuit("openmeteo"),
		geocode: googleGeocoder(geocoderAPIKey),
		coords:  make(map[string][2]float64),
		lookups: make(map[string]*geocodeLookup),
	}
}

// googleGeocoder resolves cities with the Google Geocoding API. The library
// keeps its key in a package variable, so it is set once here.
func googleGeocoder(apiKey string) func(weather.Location) (float64, float64, error) {
	if apiKey != "" {
		geocoder.ApiKey = apiKey
	}
	return func(loc weather.Location) (lat, lon float64, err error) {
		if apiKey == "" {
			return 0, 0, fmt.Errorf("openmeteo requires coordinates or a geocoder api key")
		}
		// Geocoding indexes the first result without checking there is one.
		defer func() {
			if r := recover(); r != nil {
				lat, lon, err = 0, 0, fmt.Errorf("geocode %s: %v", loc.Query(), r)
			}
		}()
		location, err := geocoder.Geocoding(geocoder.Address{
			City:    loc.City,
			Country: loc.Country,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("geocode %s: %w", loc.Query(), err)
		}
		return location.Latitude, location.Longitude, nil
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// coordinates returns the configured or cached coordinates, geocoding at most
// one lookup at a time. The geocoder takes no context, so the lookup runs in its
// own goroutine and ctx bounds only the wait; a late answer still fills the cache.
func (p *OpenMeteoProvider) coordinates(ctx context.Context, loc weather.Location) (float64, float64, error) {
	if loc.HasCoordinates() {
		return *loc.Lat, *loc.Lon, nil
	}

	key := loc.Key()

	p.mu.Lock()
	if c, ok := p.coords[key]; ok {
		p.mu.Unlock()
		return c[0], c[1], nil
	}
	pending, ok := p.lookups[key]
	if !ok {
		pending = &geocodeLookup{done: make(chan struct{})}
		p.lookups[key] = pending
		go p.resolve(key, loc, pending)
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("geocode %s: %w", loc.Query(), ctx.Err())
	case <-pending.done:
	}
	if pending.err != nil {
		return 0, 0, pending.err
	}
	return pending.lat, pending.lon, nil
}

type geocodeLookup struct {
	done     chan struct{}
	lat, lon float64
	err      error
}

func (p *OpenMeteoProvider) resolve(key string, loc weather.Location, l *geocodeLookup) {
	l.lat, l.lon, l.err = p.geocode(loc)

	p.mu.Lock()
	if l.err == nil {
		p.coords[key] = [2]float64{l.lat, l.lon}
	}
	delete(p.lookups, key)
	p.mu.Unlock()

	close(l.done)
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	lat, lon, err := p.coordinates(ctx, loc)
	if err != nil {
		return weather.Reading{}, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("daily", "precipitation_sum")
		values.Set("current_weather", "true")
		values.Set("precipitation_unit", "inch")
		values.Set("forecast_days", "1")
		values.Set("timezone", "auto")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		CurrentWeather *struct {
			WeatherCode int `json:"weathercode"`
		} `json:"current_weather"`
		Daily *struct {
			PrecipitationSum []*float64 `json:"precipitation_sum"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("%w: %v", weather.ErrMalformedReading, err)
	}

	if payload.Daily == nil || len(payload.Daily.PrecipitationSum) == 0 || payload.Daily.PrecipitationSum[0] == nil {
		return weather.Reading{}, fmt.Errorf("%w: missing daily.precipitation_sum", weather.ErrMalformedReading)
	}

	cond := weather.ConditionUnknown
	if payload.CurrentWeather != nil {
		cond = mapOpenMeteoCondition(payload.CurrentWeather.WeatherCode)
	}

	return weather.Reading{
		Provider:     p.name,
		Timestamp:    time.Now().UTC(),
		PrecipInches: *payload.Daily.PrecipitationSum[0],
		Window:       "today",
		Condition:    cond,
	}, nil
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on Open-Meteo weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
