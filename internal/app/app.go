// Package app wires configuration, storage, the weather source and the
// estimator into the runnable service and its operator commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/snowfall-bets/internal/bets"
	"github.com/i474232898/snowfall-bets/internal/config"
	"github.com/i474232898/snowfall-bets/internal/estimator"
	"github.com/i474232898/snowfall-bets/internal/metrics"
	"github.com/i474232898/snowfall-bets/internal/store"
	"github.com/i474232898/snowfall-bets/internal/weather"
	"github.com/i474232898/snowfall-bets/internal/weather/providers"
)

// StateStore is an estimator store that an operator can also clear.
type StateStore interface {
	estimator.StateStore
	Remove(ctx context.Context) error
}

// Components holds everything the service runs on.
type Components struct {
	Config    *config.AppConfig
	Logger    *zap.SugaredLogger
	Source    *weather.Source
	States    StateStore
	Estimator *estimator.Estimator
	Bets      *bets.Service
	History   *store.PollHistory
	Metrics   *metrics.Metrics

	db *sql.DB
}

// OpenStateStore opens only the state store, for commands that do not poll.
func OpenStateStore(cfg *config.AppConfig) (StateStore, func() error, error) {
	switch cfg.StateBackend {
	case config.BackendSQLite:
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLiteStateStore(db), db.Close, nil
	default:
		return store.NewFileStateStore(cfg.StateFile), func() error { return nil }, nil
	}
}

// Build creates all components. The estimator is not started.
func Build(cfg *config.AppConfig, logger *zap.SugaredLogger) (*Components, error) {
	c := &Components{
		Config:  cfg,
		Logger:  logger,
		History: store.NewPollHistory(cfg.HistoryMax, cfg.HistoryMaxAge),
		Metrics: metrics.New(),
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	provider, err := providers.New(cfg.WeatherProvider, httpClient, providers.Keys{
		WeatherAPI:  cfg.WeatherAPIKey,
		OpenWeather: cfg.OpenWeatherAPIKey,
		Geocoder:    cfg.GeocoderAPIKey,
	})
	if err != nil {
		return nil, err
	}
	if cfg.ProviderKeyMissing() {
		logger.Warnw("weather provider credential is not configured; polls will fail", "provider", cfg.WeatherProvider)
	}
	c.Source = weather.NewSource(provider, cfg.Location())

	if cfg.StateBackend == config.BackendSQLite || cfg.LedgerBackend == config.BackendSQLite {
		c.db, err = store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Infow("sqlite opened", "path", cfg.SQLitePath)
	}

	if cfg.StateBackend == config.BackendSQLite {
		c.States = store.NewSQLiteStateStore(c.db)
	} else {
		c.States = store.NewFileStateStore(cfg.StateFile)
	}

	var ledger bets.Ledger = store.NewMemoryLedger()
	if cfg.LedgerBackend == config.BackendSQLite {
		ledger = store.NewSQLiteLedger(c.db)
	}
	c.Bets = bets.NewService(ledger, logger.Named("bets"), c.Metrics)

	c.Estimator = estimator.New(c.Source, c.States, logger.Named("estimator"),
		estimator.WithFetchTimeout(cfg.HTTPTimeout),
		estimator.WithObserver(c.History),
		estimator.WithObserver(c.Metrics),
	)
	return c, nil
}

// Start loads the persisted estimator state.
func (c *Components) Start(ctx context.Context) error {
	if err := c.Estimator.Start(ctx); err != nil {
		return err
	}
	st := c.Estimator.State()
	c.Metrics.SetTotal(st.TotalAccumulated, st.LastReading)
	return nil
}

// Close releases the database, if one was opened.
func (c *Components) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// JobTimeout bounds one scheduled poll: the fetch plus the state write.
func (c *Components) JobTimeout() time.Duration {
	return c.Config.HTTPTimeout + 5*time.Second
}

// PollOnce starts the estimator, polls once and returns the new total.
func PollOnce(ctx context.Context, c *Components) (float64, error) {
	if err := c.Start(ctx); err != nil {
		return 0, err
	}
	total, err := c.Estimator.Poll(ctx)
	if err != nil {
		if errors.Is(err, estimator.ErrSourceUnavailable) {
			return 0, fmt.Errorf("poll %s: %w", c.Source.Name(), err)
		}
		return 0, err
	}
	return total, nil
}
