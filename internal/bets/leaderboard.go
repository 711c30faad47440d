package bets

import (
	"math"
	"sort"

	"github.com/i474232898/snowfall-bets/internal/common"
)

// Standing is a bet's place on the leaderboard.
type Standing struct {
	Rank     int     `json:"rank"`
	Bet      Bet     `json:"bet"`
	Distance float64 `json:"distance"`
}

// Rank orders bets by absolute distance from total, closest first. Bets at the
// same distance share a rank and are listed oldest first.
func Rank(all []Bet, total float64) []Standing {
	out := make([]Standing, 0, len(all))
	for _, b := range all {
		out = append(out, Standing{
			Bet:      b,
			Distance: common.RoundTo(math.Abs(b.Inches-total), 2),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if !a.Bet.CreatedAt.Equal(b.Bet.CreatedAt) {
			return a.Bet.CreatedAt.Before(b.Bet.CreatedAt)
		}
		return a.Bet.Name < b.Bet.Name
	})

	for i := range out {
		if i > 0 && out[i].Distance == out[i-1].Distance {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}

// GroupByInches buckets bets by guess, ascending by inches. Names keep ledger order.
func GroupByInches(all []Bet) []Group {
	idx := make(map[float64]int)
	var groups []Group
	for _, b := range all {
		i, ok := idx[b.Inches]
		if !ok {
			i = len(groups)
			idx[b.Inches] = i
			groups = append(groups, Group{Inches: b.Inches})
		}
		groups[i].Names = append(groups[i].Names, b.Name)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Inches < groups[j].Inches })
	return groups
}
