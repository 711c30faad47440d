package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/snowfall-bets/internal/bets"
	"github.com/i474232898/snowfall-bets/internal/estimator"
)

func TestObservePoll(t *testing.T) {
	t.Parallel()

	m := New()
	at := time.Unix(1700000000, 0)

	m.ObservePoll(estimator.PollResult{At: at, State: estimator.State{TotalAccumulated: 2.5, LastReading: 1}})
	m.ObservePoll(estimator.PollResult{At: at.Add(time.Minute), Err: fmt.Errorf("%w: timeout", estimator.ErrSourceUnavailable)})
	m.ObservePoll(estimator.PollResult{
		At:    at.Add(2 * time.Minute),
		State: estimator.State{TotalAccumulated: 3, LastReading: 1.5},
		Err:   fmt.Errorf("%w: disk full", estimator.ErrPersistenceFailure),
	})

	require.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues(OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues(OutcomeSourceUnavailable)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues(OutcomePersistenceFailure)))

	// In-memory state advanced even though the write failed.
	require.Equal(t, 3.0, testutil.ToFloat64(m.total))
	require.Equal(t, 1.5, testutil.ToFloat64(m.lastReading))
}

func TestBetPlaced(t *testing.T) {
	t.Parallel()

	m := New()
	m.BetPlaced(bets.Bet{Name: "Ari"})
	m.BetPlaced(bets.Bet{Name: "Bea"})
	require.Equal(t, 2.0, testutil.ToFloat64(m.betsPlaced))
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.SetTotal(4.2, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "snowfall_total_inches 4.2")
	require.Contains(t, string(body), "go_goroutines")
}
