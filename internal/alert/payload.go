package alert

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yourusername/odds-watch/internal/models"
)

const separator = "-----------------------------------------------"

// SideOdds is one source's column in an alert.
type SideOdds struct {
	Label          string
	TotalPoint     string
	HandicapPoint0 string
	HandicapPoint1 string
	Bets           [models.BetCount]decimal.Decimal
	Bands          [models.BetCount]Band
}

// Payload is everything needed to deliver one alert.
type Payload struct {
	Source      models.Source
	League      string
	Opponent0   string
	Opponent1   string
	TimeGame    string
	Primary     SideOdds
	Counterpart *SideOdds
}

// Compose builds the alert payload for a record. counterpart is the latest
// stored item of the same game on the other source and may be nil.
func (e *Evaluator) Compose(source models.Source, league string, record models.GameRecord, counterpart *models.StoredRate) Payload {
	n := record.Rate.Normalize()
	primary := SideOdds{
		Label:          source.Label,
		TotalPoint:     record.Rate.TotalPoint,
		HandicapPoint0: record.Rate.HandicapPoint0,
		HandicapPoint1: record.Rate.HandicapPoint1,
		Bets:           n.Values,
	}
	e.fillBands(&primary)

	p := Payload{
		Source:    source,
		League:    league,
		Opponent0: record.Opponent0,
		Opponent1: record.Opponent1,
		TimeGame:  record.TimeGame,
		Primary:   primary,
	}

	if counterpart != nil {
		side := SideOdds{
			Label:          source.Counterpart().Label,
			TotalPoint:     counterpart.TotalPoint,
			HandicapPoint0: counterpart.HandicapPoint0,
			HandicapPoint1: counterpart.HandicapPoint1,
			Bets: [models.BetCount]decimal.Decimal{
				decimal.NewFromFloat(counterpart.TotalBet0),
				decimal.NewFromFloat(counterpart.TotalBet1),
				decimal.NewFromFloat(counterpart.HandicapBet0),
				decimal.NewFromFloat(counterpart.HandicapBet1),
			},
		}
		e.fillBands(&side)
		p.Counterpart = &side
	}
	return p
}

func (e *Evaluator) fillBands(side *SideOdds) {
	for i, bet := range side.Bets {
		side.Bands[i] = e.bands.BandOf(bet)
	}
}

// FormatHTML renders the payload as a Telegram HTML message. Scraped text is
// escaped so that it cannot break the markup.
func FormatHTML(p Payload) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s vs %s</b>\n",
		html.EscapeString(strings.ToUpper(p.Opponent0)),
		html.EscapeString(strings.ToUpper(p.Opponent1)))
	sb.WriteString(html.EscapeString(p.TimeGame) + "\n")
	writeSide(&sb, p.Primary)
	if p.Counterpart != nil {
		writeSide(&sb, *p.Counterpart)
	}
	return sb.String()
}

func writeSide(sb *strings.Builder, s SideOdds) {
	sb.WriteString(separator + "\n")
	fmt.Fprintf(sb, "<b>%s</b>\n", html.EscapeString(s.Label))
	fmt.Fprintf(sb, "Total: %s|%s|%s\n",
		html.EscapeString(s.TotalPoint),
		cell(s.Bets[models.TotalBet0], s.Bands[models.TotalBet0]),
		cell(s.Bets[models.TotalBet1], s.Bands[models.TotalBet1]))
	fmt.Fprintf(sb, "Handi: %s|%s|%s|%s\n",
		html.EscapeString(s.HandicapPoint0),
		cell(s.Bets[models.HandicapBet0], s.Bands[models.HandicapBet0]),
		html.EscapeString(s.HandicapPoint1),
		cell(s.Bets[models.HandicapBet1], s.Bands[models.HandicapBet1]))
}

func cell(bet decimal.Decimal, band Band) string {
	return strings.TrimSpace(bet.String() + " " + band.Emoji())
}
