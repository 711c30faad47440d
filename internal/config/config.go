package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/snowfall-bets/internal/weather"
)

// DefaultConfigFile is read when present; a missing file is not an error.
const DefaultConfigFile = "config.yaml"

// Storage backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type AppConfig struct {
	Port        string `yaml:"port" validate:"required,numeric"`
	LogLevel    string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	CORSOrigins string `yaml:"cors_origins"`

	// WeatherProvider selects the single reading source.
	WeatherProvider   string `yaml:"weather_provider" validate:"oneof=weatherapi openweather openmeteo"`
	WeatherAPIKey     string `yaml:"weatherapi_api_key"`
	OpenWeatherAPIKey string `yaml:"openweather_api_key"`
	GeocoderAPIKey    string `yaml:"geocoder_api_key"`

	// Location to track.
	City    string   `yaml:"city" validate:"required"`
	Country string   `yaml:"country"`
	Lat     *float64 `yaml:"lat" validate:"omitempty,latitude"`
	Lon     *float64 `yaml:"lon" validate:"omitempty,longitude"`

	// PollInterval controls how often the estimator polls the provider.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=1s"`
	// HTTPTimeout bounds one fetch from the provider, retries included.
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`

	StateBackend string `yaml:"state_backend" validate:"oneof=file sqlite"`
	StateFile    string `yaml:"state_file"`
	// LedgerBackend "memory" loses every bet on restart; it is meant for tests and demos.
	LedgerBackend string `yaml:"ledger_backend" validate:"oneof=memory sqlite"`
	SQLitePath    string `yaml:"sqlite_path"`

	// In-memory poll history retention.
	HistoryMax    int           `yaml:"history_max" validate:"gte=0"` // 0 = unlimited
	HistoryMaxAge time.Duration `yaml:"history_max_age" validate:"gte=0"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *AppConfig {
	return &AppConfig{
		Port:            "8080",
		LogLevel:        "info",
		CORSOrigins:     "*",
		WeatherProvider: "weatherapi",
		City:            "Chicago",
		Country:         "US",
		PollInterval:    60 * time.Second,
		HTTPTimeout:     5 * time.Second,
		StateBackend:    BackendFile,
		StateFile:       "data/snowfall_state.json",
		LedgerBackend:   BackendSQLite,
		SQLitePath:      "data/snowfall.db",
		HistoryMax:      1440, // a day of one-minute polls
		HistoryMaxAge:   24 * time.Hour,
	}
}

// Load reads the optional YAML file at path, then applies environment overrides.
func Load(path string) (*AppConfig, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.CORSOrigins, "CORS_ORIGINS")

	setString(&cfg.WeatherProvider, "WEATHER_PROVIDER")
	setString(&cfg.WeatherAPIKey, "WEATHER_API_KEY", "WEATHERAPI_API_KEY")
	setString(&cfg.OpenWeatherAPIKey, "OPENWEATHER_API_KEY")
	setString(&cfg.GeocoderAPIKey, "GEOCODER_API_KEY")

	setString(&cfg.City, "WEATHER_LOCATION_CITY")
	setString(&cfg.Country, "WEATHER_LOCATION_COUNTRY")

	setString(&cfg.StateBackend, "STATE_BACKEND")
	setString(&cfg.StateFile, "STATE_FILE")
	setString(&cfg.LedgerBackend, "LEDGER_BACKEND")
	setString(&cfg.SQLitePath, "SQLITE_PATH")

	var err error
	if cfg.Lat, err = getenvFloat("WEATHER_LOCATION_LAT", cfg.Lat); err != nil {
		return err
	}
	if cfg.Lon, err = getenvFloat("WEATHER_LOCATION_LON", cfg.Lon); err != nil {
		return err
	}
	if cfg.PollInterval, err = getenvDuration(cfg.PollInterval, "POLL_INTERVAL", "FETCH_INTERVAL"); err != nil {
		return err
	}
	if cfg.HTTPTimeout, err = getenvDuration(cfg.HTTPTimeout, "HTTP_TIMEOUT"); err != nil {
		return err
	}
	if cfg.HistoryMaxAge, err = getenvDuration(cfg.HistoryMaxAge, "HISTORY_MAX_AGE"); err != nil {
		return err
	}
	if cfg.HistoryMax, err = getenvInt("HISTORY_MAX", cfg.HistoryMax); err != nil {
		return err
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field backend requirements.
func Validate(cfg *AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.StateBackend == BackendFile && cfg.StateFile == "" {
		return errors.New("invalid config: state_file is required for the file state backend")
	}
	if (cfg.StateBackend == BackendSQLite || cfg.LedgerBackend == BackendSQLite) && cfg.SQLitePath == "" {
		return errors.New("invalid config: sqlite_path is required for sqlite backends")
	}
	return nil
}

// Location returns the tracked location.
func (c *AppConfig) Location() weather.Location {
	return weather.Location{
		City:    strings.TrimSpace(c.City),
		Country: strings.TrimSpace(c.Country),
		Lat:     c.Lat,
		Lon:     c.Lon,
	}
}

// ProviderKeyMissing reports whether the selected provider lacks its credential.
func (c *AppConfig) ProviderKeyMissing() bool {
	switch c.WeatherProvider {
	case "weatherapi":
		return c.WeatherAPIKey == ""
	case "openweather":
		return c.OpenWeatherAPIKey == ""
	case "openmeteo":
		return (c.Lat == nil || c.Lon == nil) && c.GeocoderAPIKey == ""
	}
	return false
}

// setString assigns the first non-empty environment variable among keys.
func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func getenvDuration(def time.Duration, keys ...string) (time.Duration, error) {
	for _, key := range keys {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def *float64) (*float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &f, nil
}
