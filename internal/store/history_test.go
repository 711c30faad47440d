package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/snowfall-bets/internal/estimator"
	"github.com/i474232898/snowfall-bets/internal/weather"
)

func TestPollHistory_RetentionByCount(t *testing.T) {
	t.Parallel()

	h := NewPollHistory(3, 0)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		h.Add(PollEntry{Timestamp: now.Add(time.Duration(i) * time.Minute), TotalAccumulated: float64(i)})
	}

	got := h.Recent(0)
	require.Len(t, got, 3)
	require.Equal(t, 2.0, got[0].TotalAccumulated)

	latest, err := h.Latest()
	require.NoError(t, err)
	require.Equal(t, 4.0, latest.TotalAccumulated)

	require.Len(t, h.Recent(2), 2)
	require.Equal(t, 3.0, h.Recent(2)[0].TotalAccumulated)
}

func TestPollHistory_RetentionByAge(t *testing.T) {
	t.Parallel()

	h := NewPollHistory(0, time.Hour)
	now := time.Now().UTC()
	h.Add(PollEntry{Timestamp: now.Add(-2 * time.Hour)})
	h.Add(PollEntry{Timestamp: now.Add(-90 * time.Minute)})
	h.Add(PollEntry{Timestamp: now})

	require.Len(t, h.Recent(0), 1)
}

func TestPollHistory_Range(t *testing.T) {
	t.Parallel()

	h := NewPollHistory(0, 0)
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		h.Add(PollEntry{Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}

	got, err := h.Range(base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	_, err = h.Range(base.Add(10*time.Hour), base.Add(11*time.Hour))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPollHistory_ObservePoll(t *testing.T) {
	t.Parallel()

	h := NewPollHistory(10, 0)
	_, err := h.Latest()
	require.ErrorIs(t, err, ErrNotFound)

	h.ObservePoll(estimator.PollResult{At: time.Now(), Err: errors.New("boom")})
	require.Empty(t, h.Recent(0))

	h.ObservePoll(estimator.PollResult{
		At:      time.Now(),
		Reading: weather.Reading{Provider: "weatherapi", PrecipInches: 1.2, Window: "today", Condition: weather.ConditionSnow},
		Delta:   0.2,
		State:   estimator.State{TotalAccumulated: 3.2, LastReading: 1.2},
	})
	latest, err := h.Latest()
	require.NoError(t, err)
	require.Equal(t, "weatherapi", latest.Provider)
	require.Equal(t, 1.2, latest.Reading)
	require.Equal(t, 3.2, latest.TotalAccumulated)
	require.Equal(t, weather.ConditionSnow, latest.Condition)
}
