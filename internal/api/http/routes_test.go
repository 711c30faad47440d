package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/snowfall-bets/internal/bets"
	"github.com/i474232898/snowfall-bets/internal/estimator"
	"github.com/i474232898/snowfall-bets/internal/store"
)

type fakeEstimator struct {
	snap        estimator.Snapshot
	pollErr     error
	polls       int
	hadDeadline bool
}

func (f *fakeEstimator) Current() estimator.Snapshot { return f.snap }

func (f *fakeEstimator) Poll(ctx context.Context) (float64, error) {
	f.polls++
	_, f.hadDeadline = ctx.Deadline()
	if f.pollErr != nil {
		return 0, f.pollErr
	}
	return f.snap.TotalAccumulated, nil
}

type fixture struct {
	app     *fiber.App
	est     *fakeEstimator
	bets    *bets.Service
	history *store.PollHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		est: &fakeEstimator{snap: estimator.Snapshot{
			TotalAccumulated: 4,
			Phase:            estimator.PhaseTracking,
			Persisted:        true,
		}},
		bets:    bets.NewService(store.NewMemoryLedger(), nil, nil),
		history: store.NewPollHistory(100, 0),
	}
	f.app = NewApp(AppOptions{Name: "test"})
	RegisterRoutes(f.app, Dependencies{
		Estimator: f.est,
		Bets:      f.bets,
		History:   f.history,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "snowfall_total_inches 4\n")
		}),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), `"phase":"tracking"`)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "snowfall_total_inches")
}

func TestGetSnowfall(t *testing.T) {
	f := newFixture(t)
	f.est.snap.Stale = true
	f.est.snap.LastError = "weather source unavailable: timeout"

	code, body := f.do(t, http.MethodGet, "/api/v1/snowfall", "")
	require.Equal(t, http.StatusOK, code)

	var snap estimator.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Equal(t, 4.0, snap.TotalAccumulated)
	require.True(t, snap.Stale)
	require.Equal(t, 0, f.est.polls, "reads never trigger a fetch")
}

func TestGetSnowfall_NotPersisted(t *testing.T) {
	f := newFixture(t)
	f.est.snap.Persisted = false
	f.est.snap.PersistError = "estimator state not persisted: disk full"
	// A later source failure must not change what the 500 reports.
	f.est.snap.Stale = true
	f.est.snap.LastError = "weather source unavailable: connection refused"

	code, body := f.do(t, http.MethodGet, "/api/v1/snowfall", "")
	require.Equal(t, http.StatusInternalServerError, code)
	require.Contains(t, string(body), "disk full")
	require.NotContains(t, string(body), "weather source unavailable")
	require.Contains(t, string(body), `"error":true`)
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"source unavailable", fmt.Errorf("%w: timeout", estimator.ErrSourceUnavailable), http.StatusServiceUnavailable},
		{"not started", estimator.ErrNotStarted, http.StatusServiceUnavailable},
		{"persistence failure", fmt.Errorf("%w: disk full", estimator.ErrPersistenceFailure), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.est.pollErr = tt.err

			code, _ := f.do(t, http.MethodPost, "/api/v1/snowfall/refresh", "")
			require.Equal(t, tt.want, code)
			require.Equal(t, 1, f.est.polls)
			require.True(t, f.est.hadDeadline, "refresh must bound the poll")
		})
	}
}

func TestPlaceBet(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"number", `{"name":"Ari","inches":3.5}`, http.StatusCreated},
		{"numeric string", `{"name":"Bea","inches":"7.25"}`, http.StatusCreated},
		{"zero", `{"name":"Cy","inches":0}`, http.StatusCreated},
		{"missing inches", `{"name":"Dee"}`, http.StatusBadRequest},
		{"too many inches", `{"name":"Eve","inches":12.5}`, http.StatusBadRequest},
		{"negative", `{"name":"Fay","inches":-1}`, http.StatusBadRequest},
		{"blank name", `{"name":"  ","inches":2}`, http.StatusBadRequest},
		{"garbage inches", `{"name":"Gus","inches":"lots"}`, http.StatusBadRequest},
		{"not json", `name=Hal`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code, body := f.do(t, http.MethodPost, "/api/v1/bets", tt.body)
			require.Equal(t, tt.want, code, string(body))

			all, err := f.bets.List(context.Background())
			require.NoError(t, err)
			if tt.want == http.StatusCreated {
				require.Len(t, all, 1)
			} else {
				require.Empty(t, all)
			}
		})
	}
}

func TestListBets(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/v1/bets", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, string(body))

	for _, b := range []string{`{"name":"Ari","inches":3}`, `{"name":"Bea","inches":3}`, `{"name":"Cy","inches":8}`} {
		code, _ := f.do(t, http.MethodPost, "/api/v1/bets", b)
		require.Equal(t, http.StatusCreated, code)
	}

	_, body = f.do(t, http.MethodGet, "/api/v1/bets", "")
	var all []bets.Bet
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 3)

	_, body = f.do(t, http.MethodGet, "/api/v1/bets/grouped", "")
	require.JSONEq(t, `[{"inches":3,"names":["Ari","Bea"]},{"inches":8,"names":["Cy"]}]`, string(body))
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	_, err := f.bets.Place(context.Background(), "far", 11)
	require.NoError(t, err)
	_, err = f.bets.Place(context.Background(), "close", 4.5)
	require.NoError(t, err)

	code, body := f.do(t, http.MethodGet, "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		TotalAccumulated float64         `json:"totalAccumulated"`
		Standings        []bets.Standing `json:"standings"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, 4.0, resp.TotalAccumulated)
	require.Len(t, resp.Standings, 2)
	require.Equal(t, "close", resp.Standings[0].Bet.Name)
	require.Equal(t, 0.5, resp.Standings[0].Distance)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		f.history.Add(store.PollEntry{Timestamp: base.Add(time.Duration(i) * time.Minute), TotalAccumulated: float64(i)})
	}

	code, body := f.do(t, http.MethodGet, "/api/v1/snowfall/history?limit=2", "")
	require.Equal(t, http.StatusOK, code)
	var resp struct {
		Entries []store.PollEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Entries, 2)
	require.Equal(t, 4.0, resp.Entries[1].TotalAccumulated)

	from := base.Add(time.Minute).Unix()
	to := base.Add(2 * time.Minute).Unix()
	code, body = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/snowfall/history?from=%d&to=%d", from, to), "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Entries, 2)

	code, _ = f.do(t, http.MethodGet, "/api/v1/snowfall/history?from=2020-01-01T00:00:00Z&to=2020-01-02T00:00:00Z", "")
	require.Equal(t, http.StatusNotFound, code)

	for _, bad := range []string{"limit=abc", "limit=-1", "from=2026-01-10T00:00:00Z", "from=10&to=5", "from=yesterday&to=today"} {
		code, _ = f.do(t, http.MethodGet, "/api/v1/snowfall/history?"+bad, "")
		require.Equal(t, http.StatusBadRequest, code, bad)
	}
}
