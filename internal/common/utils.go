package common

import (
	"math"
	"strings"
)

const mmPerInch = 25.4

// HasAny returns true if s contains any of the substrings, ignoring case.
func HasAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// MillimetersToInches converts a precipitation depth.
func MillimetersToInches(mm float64) float64 {
	return mm / mmPerInch
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
