// Package estimator turns point-in-time precipitation readings into a
// non-decreasing cumulative snowfall total that survives restarts.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/snowfall-bets/internal/weather"
)

// DefaultFetchTimeout bounds a single call to the weather source.
const DefaultFetchTimeout = 5 * time.Second

// Source supplies the current raw reading for the tracked location.
type Source interface {
	Read(ctx context.Context) (weather.Reading, error)
}

// StateStore persists the accumulator. Load returns ErrNotFound when nothing
// was saved yet and ErrMalformedState when the saved record is unusable.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// PollResult describes one poll attempt.
type PollResult struct {
	At      time.Time
	Reading weather.Reading
	Delta   float64
	State   State
	Err     error
}

// Observer is notified after every poll attempt, successful or not.
type Observer interface {
	ObservePoll(res PollResult)
}

// Snapshot is the read-only view served to clients.
type Snapshot struct {
	TotalAccumulated float64           `json:"totalAccumulated"`
	LastReading      float64           `json:"lastReading"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	LastPollAt       time.Time         `json:"lastPollAt"`
	Condition        weather.Condition `json:"condition"`
	Phase            Phase             `json:"phase"`

	// Stale is set while the most recent poll failed to get a reading.
	Stale     bool   `json:"stale"`
	LastError string `json:"lastError,omitempty"`

	// Persisted is false while memory is ahead of durable storage;
	// PersistError then holds the failed write.
	Persisted    bool   `json:"persisted"`
	PersistError string `json:"persistError,omitempty"`
}

// Estimator owns the accumulator state. Poll is the only writer; Current
// never touches the source or the store.
type Estimator struct {
	source Source
	store  StateStore
	logger *zap.SugaredLogger

	fetchTimeout time.Duration
	observers    []Observer
	now          func() time.Time

	// pollMu serialises the fetch, update and persist sequence.
	pollMu sync.Mutex

	mu    sync.RWMutex
	state State
	view  Snapshot
}

// Option customises an Estimator.
type Option func(*Estimator)

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithObserver registers an observer for poll results.
func WithObserver(o Observer) Option {
	return func(e *Estimator) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		e.now = now
	}
}

// New creates an Estimator in the uninitialized phase. Call Start before Poll.
func New(source Source, store StateStore, logger *zap.SugaredLogger, opts ...Option) *Estimator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	e := &Estimator{
		source:       source,
		store:        store,
		logger:       logger,
		fetchTimeout: DefaultFetchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		view: Snapshot{
			Phase:     PhaseUninitialized,
			Condition: weather.ConditionUnknown,
			Persisted: true,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start loads the persisted state once. A missing or malformed record starts
// tracking from zero; any other store error is returned.
func (e *Estimator) Start(ctx context.Context) error {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	if e.Phase() == PhaseTracking {
		return nil
	}

	st, err := e.store.Load(ctx)
	switch {
	case err == nil:
		if verr := st.Validate(); verr != nil {
			e.logger.Warnw("persisted state rejected, starting from zero", "error", verr)
			st = State{}
		}
	case errors.Is(err, ErrNotFound):
		e.logger.Infow("no persisted state, starting from zero")
		st = State{}
	case errors.Is(err, ErrMalformedState):
		e.logger.Warnw("persisted state is malformed, starting from zero", "error", err)
		st = State{}
	default:
		return fmt.Errorf("load estimator state: %w", err)
	}

	e.mu.Lock()
	e.state = st
	e.view.TotalAccumulated = st.TotalAccumulated
	e.view.LastReading = st.LastReading
	e.view.UpdatedAt = st.UpdatedAt
	e.view.Phase = PhaseTracking
	e.mu.Unlock()

	e.logger.Infow("estimator tracking",
		"totalAccumulated", st.TotalAccumulated,
		"lastReading", st.LastReading,
	)
	return nil
}

// Poll fetches a reading, applies it, persists the result and returns the new total.
//
// On ErrSourceUnavailable nothing changes. On ErrPersistenceFailure the in-memory
// state has advanced and stays authoritative; the next successful save catches up.
func (e *Estimator) Poll(ctx context.Context) (float64, error) {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	if e.Phase() != PhaseTracking {
		return 0, ErrNotStarted
	}

	at := e.now()

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	reading, err := e.source.Read(fetchCtx)
	cancel()
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		e.mu.Lock()
		e.view.LastPollAt = at
		e.view.Stale = true
		e.view.LastError = err.Error()
		st := e.state
		e.mu.Unlock()

		e.logger.Warnw("poll failed", "error", err)
		e.notify(PollResult{At: at, State: st, Err: err})
		return 0, err
	}

	e.mu.Lock()
	next, delta := Apply(e.state, reading.PrecipInches)
	next.UpdatedAt = at
	e.state = next
	e.view.TotalAccumulated = next.TotalAccumulated
	e.view.LastReading = next.LastReading
	e.view.UpdatedAt = at
	e.view.LastPollAt = at
	e.view.Condition = reading.Condition
	e.view.Stale = false
	e.view.LastError = ""
	e.mu.Unlock()

	if err := e.store.Save(ctx, next); err != nil {
		err = fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		e.mu.Lock()
		e.view.Persisted = false
		e.view.PersistError = err.Error()
		e.mu.Unlock()

		e.logger.Errorw("persist estimator state", "error", err, "totalAccumulated", next.TotalAccumulated)
		e.notify(PollResult{At: at, Reading: reading, Delta: delta, State: next, Err: err})
		return 0, err
	}

	e.mu.Lock()
	e.view.Persisted = true
	e.view.PersistError = ""
	e.mu.Unlock()

	e.logger.Debugw("poll applied",
		"reading", reading.PrecipInches,
		"delta", delta,
		"totalAccumulated", next.TotalAccumulated,
	)
	e.notify(PollResult{At: at, Reading: reading, Delta: delta, State: next})
	return next.TotalAccumulated, nil
}

// Current returns the cached view without fetching.
func (e *Estimator) Current() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view
}

// State returns a copy of the in-memory accumulator.
func (e *Estimator) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Phase returns the lifecycle phase.
func (e *Estimator) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view.Phase
}

func (e *Estimator) notify(res PollResult) {
	for _, o := range e.observers {
		o.ObservePoll(res)
	}
}
