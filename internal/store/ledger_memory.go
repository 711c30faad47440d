package store

import (
	"context"
	"sync"

	"github.com/i474232898/snowfall-bets/internal/bets"
)

// MemoryLedger is a concurrency-safe in-memory bet ledger. Bets are lost on restart.
type MemoryLedger struct {
	mu   sync.RWMutex
	bets []bets.Bet
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Append(_ context.Context, bet bets.Bet) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bets = append(l.bets, bet)
	return nil
}

func (l *MemoryLedger) List(_ context.Context) ([]bets.Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]bets.Bet, len(l.bets))
	copy(out, l.bets)
	return out, nil
}
