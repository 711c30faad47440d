package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/snowfall-bets/internal/common"
	"github.com/i474232898/snowfall-bets/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
// The reading is the precipitation of today's forecast hours that have already
// started, as seen by the provider's local clock.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff,
		},
		circuit: newCircuit("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Location *struct {
		LocaltimeEpoch *int64 `json:"localtime_epoch"`
	} `json:"location"`
	Current *struct {
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
	Forecast *struct {
		Forecastday []struct {
			Hour []struct {
				TimeEpoch *int64   `json:"time_epoch"`
				PrecipIn  *float64 `json:"precip_in"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("weatherapi api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("days", "1")
		// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
		if loc.HasCoordinates() {
			values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
		} else {
			values.Set("q", loc.Query())
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload weatherAPIPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("%w: %v", weather.ErrMalformedReading, err)
	}

	return p.toReading(payload)
}

func (p *WeatherAPIProvider) toReading(payload weatherAPIPayload) (weather.Reading, error) {
	if payload.Location == nil || payload.Location.LocaltimeEpoch == nil {
		return weather.Reading{}, fmt.Errorf("%w: missing location.localtime_epoch", weather.ErrMalformedReading)
	}
	if payload.Forecast == nil || len(payload.Forecast.Forecastday) == 0 {
		return weather.Reading{}, fmt.Errorf("%w: missing forecast.forecastday", weather.ErrMalformedReading)
	}

	hours := payload.Forecast.Forecastday[0].Hour
	if len(hours) == 0 {
		return weather.Reading{}, fmt.Errorf("%w: missing forecast hours", weather.ErrMalformedReading)
	}

	now := *payload.Location.LocaltimeEpoch
	var total float64
	for i, h := range hours {
		if h.TimeEpoch == nil || h.PrecipIn == nil {
			return weather.Reading{}, fmt.Errorf("%w: hour %d lacks time_epoch or precip_in", weather.ErrMalformedReading, i)
		}
		if *h.TimeEpoch > now {
			continue
		}
		total += *h.PrecipIn
	}

	cond := weather.ConditionUnknown
	if payload.Current != nil {
		cond = mapWeatherAPICondition(payload.Current.Condition.Text)
	}

	return weather.Reading{
		Provider:     p.name,
		Timestamp:    time.Unix(now, 0).UTC(),
		PrecipInches: common.RoundTo(total, 2),
		Window:       "today",
		Condition:    cond,
	}, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case common.HasAny(text, "snow", "sleet", "blizzard", "ice pellets"):
		return weather.ConditionSnow
	case common.HasAny(text, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAny(text, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAny(text, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAny(text, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
