package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "CORS_ORIGINS",
		"WEATHER_PROVIDER", "WEATHER_API_KEY", "WEATHERAPI_API_KEY", "OPENWEATHER_API_KEY", "GEOCODER_API_KEY",
		"WEATHER_LOCATION_CITY", "WEATHER_LOCATION_COUNTRY", "WEATHER_LOCATION_LAT", "WEATHER_LOCATION_LON",
		"POLL_INTERVAL", "FETCH_INTERVAL", "HTTP_TIMEOUT",
		"STATE_BACKEND", "STATE_FILE", "LEDGER_BACKEND", "SQLITE_PATH",
		"HISTORY_MAX", "HISTORY_MAX_AGE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
	require.Equal(t, "Chicago,US", cfg.Location().Query())
	require.True(t, cfg.ProviderKeyMissing())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("WEATHER_PROVIDER", "openweather")
	t.Setenv("OPENWEATHER_API_KEY", "secret")
	t.Setenv("WEATHER_LOCATION_CITY", "Denver")
	t.Setenv("WEATHER_LOCATION_LAT", "39.74")
	t.Setenv("WEATHER_LOCATION_LON", "-104.99")
	t.Setenv("FETCH_INTERVAL", "30s")
	t.Setenv("HISTORY_MAX", "10")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "openweather", cfg.WeatherProvider)
	require.Equal(t, "Denver", cfg.City)
	require.NotNil(t, cfg.Lat)
	require.Equal(t, 39.74, *cfg.Lat)
	require.Equal(t, 30*time.Second, cfg.PollInterval)
	require.Equal(t, 10, cfg.HistoryMax)
	require.False(t, cfg.ProviderKeyMissing())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
weather_provider: openmeteo
city: Boston
poll_interval: 2m
state_backend: sqlite
sqlite_path: data/snowfall.db
`), 0o600))
	t.Setenv("PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "7001", cfg.Port)
	require.Equal(t, "openmeteo", cfg.WeatherProvider)
	require.Equal(t, "Boston", cfg.City)
	require.Equal(t, 2*time.Minute, cfg.PollInterval)
	require.Equal(t, BackendSQLite, cfg.StateBackend)
	require.Equal(t, BackendSQLite, cfg.LedgerBackend)
	require.Equal(t, "data/snowfall.db", cfg.SQLitePath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"POLL_INTERVAL": "soon"}},
		{"interval too short", map[string]string{"POLL_INTERVAL": "10ms"}},
		{"unknown provider", map[string]string{"WEATHER_PROVIDER": "accuweather"}},
		{"bad latitude", map[string]string{"WEATHER_LOCATION_LAT": "123"}},
		{"non numeric port", map[string]string{"PORT": "http"}},
		{"bad history max", map[string]string{"HISTORY_MAX": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestLoad_DurableLedgerByDefault(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.LedgerBackend)
	require.NotEmpty(t, cfg.SQLitePath)

	t.Setenv("LEDGER_BACKEND", "memory")
	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.LedgerBackend)
}

func TestValidate_SQLiteNeedsPath(t *testing.T) {
	cfg := Defaults()
	cfg.SQLitePath = ""
	require.Error(t, Validate(cfg))

	cfg.LedgerBackend = BackendMemory
	require.NoError(t, Validate(cfg))

	cfg.StateBackend = BackendSQLite
	require.Error(t, Validate(cfg))
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [8080"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
