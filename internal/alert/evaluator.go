// Package alert decides which changed records are worth keeping and which
// are worth a chat alert, and composes the cross-source comparison payload.
package alert

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yourusername/odds-watch/internal/config"
	"github.com/yourusername/odds-watch/internal/models"
)

// Default ceilings
var (
	DefaultStoreCeiling = decimal.RequireFromString("1.73")
	DefaultAlertCeiling = decimal.RequireFromString("1.68")
)

// Decision is the outcome of evaluating one record.
type Decision struct {
	Bands    [models.BetCount]Band
	Store    bool
	Dispatch bool
}

// Highest returns the tightest band across the four bets.
func (d Decision) Highest() Band {
	best := BandNone
	for _, b := range d.Bands {
		if b != BandNone && (best == BandNone || b < best) {
			best = b
		}
	}
	return best
}

// Evaluator applies the band configuration to records.
type Evaluator struct {
	bands        Bands
	storeCeiling decimal.Decimal
	alertCeiling decimal.Decimal
}

// NewEvaluator creates an evaluator
func NewEvaluator(bands Bands, storeCeiling, alertCeiling decimal.Decimal) *Evaluator {
	return &Evaluator{
		bands:        bands,
		storeCeiling: storeCeiling,
		alertCeiling: alertCeiling,
	}
}

// NewDefaultEvaluator creates an evaluator with the production boundaries
func NewDefaultEvaluator() *Evaluator {
	return NewEvaluator(DefaultBands(), DefaultStoreCeiling, DefaultAlertCeiling)
}

// EvaluatorFrom builds an evaluator from the alerts config section.
func EvaluatorFrom(cfg config.AlertsConfig) (*Evaluator, error) {
	bands := Bands{
		VioletMax: decimal.NewFromFloat(cfg.VioletMax),
		RedMin:    decimal.NewFromFloat(cfg.RedMin),
		RedMax:    decimal.NewFromFloat(cfg.RedMax),
		OrangeMin: decimal.NewFromFloat(cfg.OrangeMin),
		OrangeMax: decimal.NewFromFloat(cfg.OrangeMax),
		YellowMin: decimal.NewFromFloat(cfg.YellowMin),
		YellowMax: decimal.NewFromFloat(cfg.YellowMax),
	}
	if err := bands.Validate(); err != nil {
		return nil, fmt.Errorf("invalid alert bands: %w", err)
	}
	return NewEvaluator(bands, decimal.NewFromFloat(cfg.StoreCeiling), decimal.NewFromFloat(cfg.AlertCeiling)), nil
}

// Bands returns the band configuration
func (e *Evaluator) Bands() Bands {
	return e.bands
}

// Evaluate bands each bet independently. A record is stored when any bet is
// in (0, storeCeiling] and dispatched when any bet is in (0, alertCeiling].
func (e *Evaluator) Evaluate(record models.GameRecord) Decision {
	var d Decision
	for i, bet := range record.Rate.Normalize().Bets() {
		d.Bands[i] = e.bands.BandOf(bet)
		if !bet.IsPositive() {
			continue
		}
		if bet.LessThanOrEqual(e.storeCeiling) {
			d.Store = true
		}
		if bet.LessThanOrEqual(e.alertCeiling) {
			d.Dispatch = true
		}
	}
	return d
}
