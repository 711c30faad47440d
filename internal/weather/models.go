package weather

import (
	"fmt"
	"time"
)

// Condition is a normalized high-level weather condition reported alongside a reading.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

// Location is the single place whose precipitation is tracked.
// City is required; Lat/Lon are optional and only some providers need them.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for logs and metrics labels.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// Query renders the location the way city based APIs expect it ("City,Country").
func (l Location) Query() string {
	if l.Country == "" {
		return l.City
	}
	return fmt.Sprintf("%s,%s", l.City, l.Country)
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Reading is a single point-in-time precipitation measurement.
type Reading struct {
	Provider     string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"` // always UTC
	PrecipInches float64   `json:"precipInches"`

	// Window describes what PrecipInches covers, e.g. "today" or "1h".
	Window string `json:"window"`

	Condition Condition `json:"condition"`
}
