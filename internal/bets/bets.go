// Package bets holds the append-only ledger of snowfall guesses and the
// leaderboard that ranks them against the accumulated total.
package bets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/snowfall-bets/internal/common"
)

const (
	// MaxInches is the top of the ruler; guesses above it are rejected.
	MaxInches = 12.0
	// MaxNameLength bounds the display name in characters.
	MaxNameLength = 64
)

// ErrInvalidBet is returned when a guess fails validation.
var ErrInvalidBet = errors.New("invalid bet")

// Bet is an immutable guess of total snowfall in inches.
type Bet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Inches    float64   `json:"inches"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ledger is the append-only bet storage.
type Ledger interface {
	Append(ctx context.Context, bet Bet) error
	List(ctx context.Context) ([]Bet, error)
}

// Recorder is notified of every accepted bet.
type Recorder interface {
	BetPlaced(bet Bet)
}

// Service validates and records bets.
type Service struct {
	ledger   Ledger
	logger   *zap.SugaredLogger
	recorder Recorder
	now      func() time.Time
}

// NewService creates a Service on top of ledger. recorder may be nil.
func NewService(ledger Ledger, logger *zap.SugaredLogger, recorder Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		ledger:   ledger,
		logger:   logger,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Place validates a guess and appends it to the ledger.
// Inches are rounded to one decimal, the resolution of the ruler.
func (s *Service) Place(ctx context.Context, name string, inches float64) (Bet, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return Bet{}, fmt.Errorf("%w: name is required", ErrInvalidBet)
	case utf8.RuneCountInString(name) > MaxNameLength:
		return Bet{}, fmt.Errorf("%w: name longer than %d characters", ErrInvalidBet, MaxNameLength)
	case math.IsNaN(inches) || inches < 0 || inches > MaxInches:
		return Bet{}, fmt.Errorf("%w: inches must be between 0 and %v", ErrInvalidBet, MaxInches)
	}

	bet := Bet{
		ID:        uuid.New().String(),
		Name:      name,
		Inches:    common.RoundTo(inches, 1),
		CreatedAt: s.now(),
	}
	if err := s.ledger.Append(ctx, bet); err != nil {
		return Bet{}, fmt.Errorf("append bet: %w", err)
	}

	s.logger.Infow("bet placed", "id", bet.ID, "name", bet.Name, "inches", bet.Inches)
	if s.recorder != nil {
		s.recorder.BetPlaced(bet)
	}
	return bet, nil
}

// List returns every bet in the order they were placed.
func (s *Service) List(ctx context.Context) ([]Bet, error) {
	return s.ledger.List(ctx)
}

// Group is every bettor who picked the same mark on the ruler.
type Group struct {
	Inches float64  `json:"inches"`
	Names  []string `json:"names"`
}

// Grouped returns bets grouped by guessed inches, ascending.
func (s *Service) Grouped(ctx context.Context) ([]Group, error) {
	all, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByInches(all), nil
}

// Leaderboard ranks every bet against total.
func (s *Service) Leaderboard(ctx context.Context, total float64) ([]Standing, error) {
	all, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(all, total), nil
}
