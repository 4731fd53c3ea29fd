package alert

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Band classifies a single bet value.
type Band int

// Bands from the tightest odds to the loosest
const (
	BandNone Band = iota
	BandViolet
	BandRed
	BandOrange
	BandYellow
)

func (b Band) String() string {
	switch b {
	case BandViolet:
		return "violet"
	case BandRed:
		return "red"
	case BandOrange:
		return "orange"
	case BandYellow:
		return "yellow"
	default:
		return "none"
	}
}

// Emoji returns the marker printed next to a bet in chat messages.
func (b Band) Emoji() string {
	switch b {
	case BandViolet:
		return "🟣"
	case BandRed:
		return "🔴"
	case BandOrange:
		return "🟠"
	case BandYellow:
		return "🟡"
	default:
		return ""
	}
}

// Bands holds the inclusive band boundaries.
// Values between two bands (for example 1.595) fall into no band.
type Bands struct {
	VioletMax decimal.Decimal
	RedMin    decimal.Decimal
	RedMax    decimal.Decimal
	OrangeMin decimal.Decimal
	OrangeMax decimal.Decimal
	YellowMin decimal.Decimal
	YellowMax decimal.Decimal
}

// DefaultBands returns the production boundaries
func DefaultBands() Bands {
	return Bands{
		VioletMax: decimal.RequireFromString("1.59"),
		RedMin:    decimal.RequireFromString("1.60"),
		RedMax:    decimal.RequireFromString("1.63"),
		OrangeMin: decimal.RequireFromString("1.64"),
		OrangeMax: decimal.RequireFromString("1.68"),
		YellowMin: decimal.RequireFromString("1.69"),
		YellowMax: decimal.RequireFromString("1.73"),
	}
}

// Validate checks that the boundaries are positive and ordered.
func (b Bands) Validate() error {
	ordered := []decimal.Decimal{b.VioletMax, b.RedMin, b.RedMax, b.OrangeMin, b.OrangeMax, b.YellowMin, b.YellowMax}
	if !ordered[0].IsPositive() {
		return fmt.Errorf("violet upper bound must be positive, got %s", ordered[0])
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].LessThan(ordered[i-1]) {
			return fmt.Errorf("band boundaries out of order at %s < %s", ordered[i], ordered[i-1])
		}
	}
	return nil
}

// BandOf returns the band of a bet value.
func (b Bands) BandOf(x decimal.Decimal) Band {
	switch {
	case !x.IsPositive():
		return BandNone
	case x.LessThanOrEqual(b.VioletMax):
		return BandViolet
	case within(x, b.RedMin, b.RedMax):
		return BandRed
	case within(x, b.OrangeMin, b.OrangeMax):
		return BandOrange
	case within(x, b.YellowMin, b.YellowMax):
		return BandYellow
	default:
		return BandNone
	}
}

func within(x, lo, hi decimal.Decimal) bool {
	return x.GreaterThanOrEqual(lo) && x.LessThanOrEqual(hi)
}
