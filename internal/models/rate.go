package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Bet positions inside a normalized rate.
const (
	TotalBet0 = iota
	TotalBet1
	HandicapBet0
	HandicapBet1

	BetCount
)

// BetNames are the wire names of the four bet fields, indexed by bet position.
var BetNames = [BetCount]string{"total_bet_0", "total_bet_1", "handicap_bet_0", "handicap_bet_1"}

// RateSnapshot is the odds block of one game as shown on the source page.
// Values keep their original text so they can be displayed unchanged.
type RateSnapshot struct {
	TotalPoint     string `json:"total_point"`
	TotalBet0      string `json:"total_bet_0"`
	TotalBet1      string `json:"total_bet_1"`
	HandicapPoint0 string `json:"handicap_point_0"`
	HandicapBet0   string `json:"handicap_bet_0"`
	HandicapPoint1 string `json:"handicap_point_1"`
	HandicapBet1   string `json:"handicap_bet_1"`
}

// NormalizedRate pairs the display rate with its numeric bet values.
type NormalizedRate struct {
	Display RateSnapshot
	Values  [BetCount]decimal.Decimal
}

// ParseBet converts a displayed bet value into a decimal.
// Placeholders ("-", "", anything unparsable) become zero.
func ParseBet(value string) decimal.Decimal {
	value = strings.TrimSpace(value)
	if value == "" || value == "-" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Equal reports whether two rates carry the same displayed values.
func (r RateSnapshot) Equal(other RateSnapshot) bool {
	return r == other
}

// betStrings returns the raw bet fields in bet position order.
func (r RateSnapshot) betStrings() [BetCount]string {
	return [BetCount]string{r.TotalBet0, r.TotalBet1, r.HandicapBet0, r.HandicapBet1}
}

// Normalize parses the bet fields once. The display strings are retained.
func (r RateSnapshot) Normalize() NormalizedRate {
	n := NormalizedRate{Display: r}
	for i, raw := range r.betStrings() {
		n.Values[i] = ParseBet(raw)
	}
	return n
}

// Denormalize renders the numeric bets back into a rate, keeping the display points.
func (n NormalizedRate) Denormalize() RateSnapshot {
	r := n.Display
	r.TotalBet0 = n.Values[TotalBet0].String()
	r.TotalBet1 = n.Values[TotalBet1].String()
	r.HandicapBet0 = n.Values[HandicapBet0].String()
	r.HandicapBet1 = n.Values[HandicapBet1].String()
	return r
}

// Bets returns the four bet values in bet position order.
func (n NormalizedRate) Bets() []decimal.Decimal {
	return n.Values[:]
}

// Float returns the bet at position i as a float64 for serialization.
func (n NormalizedRate) Float(i int) float64 {
	return n.Values[i].InexactFloat64()
}
