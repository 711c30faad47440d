package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/snowfall-bets/internal/bets"
	"github.com/i474232898/snowfall-bets/internal/estimator"
	"github.com/i474232898/snowfall-bets/internal/store"
)

var validate = validator.New()

// Estimator is the part of *estimator.Estimator the API needs.
type Estimator interface {
	Current() estimator.Snapshot
	Poll(ctx context.Context) (float64, error)
}

// Dependencies are the collaborators served by the routes.
type Dependencies struct {
	Estimator Estimator
	Bets      *bets.Service
	History   *store.PollHistory
	// Metrics is optional; /metrics is only mounted when set.
	Metrics http.Handler
	// PollTimeout bounds an on-demand refresh, fetch and write included.
	PollTimeout time.Duration
}

// DefaultPollTimeout is used when Dependencies.PollTimeout is not set.
const DefaultPollTimeout = estimator.DefaultFetchTimeout + 5*time.Second

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "snowfall-bets",
			"phase":   deps.Estimator.Current().Phase,
		})
	})

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/snowfall", func(c *fiber.Ctx) error {
		snap := deps.Estimator.Current()
		if !snap.Persisted {
			msg := snap.PersistError
			if msg == "" {
				msg = estimator.ErrPersistenceFailure.Error()
			}
			return fiber.NewError(fiber.StatusInternalServerError, msg)
		}
		return c.JSON(snap)
	})

	pollTimeout := deps.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	v1.Post("/snowfall/refresh", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), pollTimeout)
		defer cancel()

		if _, err := deps.Estimator.Poll(ctx); err != nil {
			return pollError(err)
		}
		return c.JSON(deps.Estimator.Current())
	})

	v1.Get("/snowfall/history", func(c *fiber.Ctx) error {
		if deps.History == nil {
			return c.JSON(fiber.Map{"entries": []store.PollEntry{}})
		}

		var q historyQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if q.From == nil {
			return c.JSON(fiber.Map{"entries": deps.History.Recent(q.Limit)})
		}

		entries, err := deps.History.Range(*q.From, *q.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no polls in requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read poll history")
		}
		return c.JSON(fiber.Map{
			"from":    q.From,
			"to":      q.To,
			"entries": entries,
		})
	})

	v1.Post("/bets", func(c *fiber.Ctx) error {
		var req betRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		req.Name = strings.TrimSpace(req.Name)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		bet, err := deps.Bets.Place(c.UserContext(), req.Name, float64(*req.Inches))
		if err != nil {
			if errors.Is(err, bets.ErrInvalidBet) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save bet")
		}
		return c.Status(fiber.StatusCreated).JSON(bet)
	})

	v1.Get("/bets", func(c *fiber.Ctx) error {
		all, err := deps.Bets.List(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list bets")
		}
		if all == nil {
			all = []bets.Bet{}
		}
		return c.JSON(all)
	})

	v1.Get("/bets/grouped", func(c *fiber.Ctx) error {
		groups, err := deps.Bets.Grouped(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list bets")
		}
		if groups == nil {
			groups = []bets.Group{}
		}
		return c.JSON(groups)
	})

	v1.Get("/leaderboard", func(c *fiber.Ctx) error {
		snap := deps.Estimator.Current()
		standings, err := deps.Bets.Leaderboard(c.UserContext(), snap.TotalAccumulated)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to rank bets")
		}
		return c.JSON(fiber.Map{
			"totalAccumulated": snap.TotalAccumulated,
			"stale":            snap.Stale,
			"standings":        standings,
		})
	})
}

func pollError(err error) error {
	switch {
	case errors.Is(err, estimator.ErrSourceUnavailable), errors.Is(err, estimator.ErrNotStarted):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, estimator.ErrPersistenceFailure):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "poll failed")
	}
}

// inches accepts both a JSON number and a numeric string, since HTML number
// inputs hand their value over as a string.
type inches float64

func (v *inches) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = inches(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*v = inches(f)
	return nil
}

// betRequest is the body of POST /bets.
type betRequest struct {
	Name   string  `json:"name" validate:"required,max=64"`
	Inches *inches `json:"inches" validate:"required,gte=0,lte=12"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Limit int `validate:"gte=0,lte=10000"`
	From  *time.Time
	To    *time.Time
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("limit must be an integer")
		}
		h.Limit = n
	}

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" && toStr == "" {
		return nil
	}
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters must be given together")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}
	if to.Before(from) {
		return errors.New("to must not be before from")
	}

	h.From = &from
	h.To = &to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
