package providers

import (
	"fmt"
	"net/http"

	"github.com/i474232898/snowfall-bets/internal/weather"
)

// Provider names accepted by New.
const (
	NameWeatherAPI  = "weatherapi"
	NameOpenWeather = "openweather"
	NameOpenMeteo   = "openmeteo"
)

// Keys holds the credentials of every supported provider.
type Keys struct {
	WeatherAPI  string
	OpenWeather string
	Geocoder    string
}

// New builds the single configured provider.
func New(name string, client *http.Client, keys Keys) (weather.Provider, error) {
	switch name {
	case NameWeatherAPI:
		return NewWeatherAPIProvider(client, keys.WeatherAPI), nil
	case NameOpenWeather:
		return NewOpenWeatherProvider(client, keys.OpenWeather), nil
	case NameOpenMeteo:
		return NewOpenMeteoProvider(client, keys.Geocoder), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", name)
	}
}
