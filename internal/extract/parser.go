package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yourusername/odds-watch/internal/models"
)

// RawGame is one game row as printed on the page, before translation.
type RawGame struct {
	Opponent0 string
	Opponent1 string
	Score0    string
	Score1    string
	Period    string
	Clock     string
	Rate      models.RateSnapshot
}

// RawLeague is a league block in page order.
type RawLeague struct {
	Name  string
	Games []RawGame
}

// Parser understands one site's markup.
type Parser interface {
	// ContainerSelector selects the element holding every game.
	ContainerSelector() string
	Parse(html string) ([]RawLeague, error)
}

// ParserFor returns the parser for a source.
func ParserFor(source models.Source) (Parser, error) {
	switch source.Name {
	case models.SourceFB.Name:
		return FBParser{}, nil
	case models.SourceAkty.Name:
		return AktyParser{}, nil
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnknownSource, source.Name)
}

var (
	totalMarks = strings.NewReplacer("大", "", "小", "", " ", "")
	euPrefix   = strings.NewReplacer("EU ", "")
)

func cleanBet(s string) string {
	return strings.TrimSpace(euPrefix.Replace(s))
}

func cleanTotalPoint(s string) string {
	return totalMarks.Replace(strings.TrimSpace(s))
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// FBParser parses the fb.com match list.
type FBParser struct{}

// ContainerSelector implements Parser.
func (FBParser) ContainerSelector() string {
	return ".home-match-list-box"
}

// Parse implements Parser.
func (FBParser) Parse(html string) ([]RawLeague, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var leagues []RawLeague
	doc.Find(".home-match-list-box .group-matches").Each(func(_ int, group *goquery.Selection) {
		name := group.Find(".league-name").First()
		if name.Length() == 0 {
			return
		}
		league := RawLeague{Name: text(name)}

		group.Find(".home-match-list__item.home-match-info").Each(func(_ int, match *goquery.Selection) {
			teams := match.Find(".match-teams-name .team-name")
			scores := match.Find(".match-score p span")
			if teams.Length() != 2 || scores.Length() != 2 {
				return
			}

			g := RawGame{
				Opponent0: text(teams.Eq(0)),
				Opponent1: text(teams.Eq(1)),
				Score0:    text(scores.Eq(0)),
				Score1:    text(scores.Eq(1)),
			}

			clock := match.Find(".time").First()
			g.Period = text(clock.Find(".match-left-text.font-din").First())
			g.Clock = text(clock.Find(".match-left-time.font-din").First())

			foundHandicap, foundTotal := false, false
			match.Find(".home-match-odds-box").Each(func(_ int, box *goquery.Selection) {
				values := box.Find(".team-odds-list .value.font-din")
				points := box.Find(".team-odds-list .prefix-text.text-grey-disable")

				switch {
				case box.HasClass("match-full-odds-handicap") && !foundHandicap:
					foundHandicap = true
					if values.Length() >= 2 {
						g.Rate.HandicapBet0 = text(values.Eq(0))
						g.Rate.HandicapBet1 = text(values.Eq(1))
					}
					if points.Length() >= 2 {
						g.Rate.HandicapPoint0 = text(points.Eq(0))
						g.Rate.HandicapPoint1 = text(points.Eq(1))
					}
				case box.HasClass("match-full-odds-total") && !foundTotal:
					foundTotal = true
					if values.Length() >= 2 {
						g.Rate.TotalBet0 = text(values.Eq(0))
						g.Rate.TotalBet1 = text(values.Eq(1))
					}
					if points.Length() >= 2 {
						g.Rate.TotalPoint = cleanTotalPoint(points.Eq(0).Text())
					}
				}
			})

			league.Games = append(league.Games, g)
		})

		leagues = append(leagues, league)
	})

	return leagues, nil
}

// AktyParser parses the akty.com virtual-scroll match list, where a league
// header card is followed by the cards of its games.
type AktyParser struct{}

// ContainerSelector implements Parser.
func (AktyParser) ContainerSelector() string {
	return "div[class*='v-scroll-content relative-position']"
}

// Parse implements Parser.
func (AktyParser) Parse(html string) ([]RawLeague, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	content := doc.Find("div.v-scroll-content.relative-position").First()
	if content.Length() == 0 {
		return nil, ErrNoContent
	}

	var leagues []RawLeague
	current := -1
	content.ChildrenFiltered("div.list-card-wrap.v-scroll-item.relative-position").Each(func(_ int, card *goquery.Selection) {
		if header := card.Find("span.ellipsis.allow-user-select").First(); header.Length() > 0 {
			leagues = append(leagues, RawLeague{Name: text(header)})
			current = len(leagues) - 1
			return
		}
		if current < 0 {
			return
		}

		columns := card.Find("div.handicap-col")
		handicap := columns.Eq(1)
		total := columns.Eq(2)

		card.Find("div.c-match-item").Each(func(_ int, item *goquery.Selection) {
			home := item.Find("div.row-item.team-item").Not(".soon").First()
			away := item.Find("div.row-item.team-item.soon").First()
			if home.Length() == 0 || away.Length() == 0 {
				return
			}

			g := RawGame{
				Opponent0: text(home.Find("div[class*='allow-user-select']").First()),
				Opponent1: text(away.Find("div[class*='allow-user-select']").First()),
				Score0:    text(home.Find("div.score span").First()),
				Score1:    text(away.Find("div.score span").First()),
				Period:    text(item.Find("div.process_name").First()),
				Clock:     text(item.Find("span.timer-layout2").First()),
			}

			handicapBets := handicap.Find("span.highlight-odds")
			handicapPoints := handicap.Find("div.handicap-value-text")
			g.Rate.HandicapBet0 = cleanBet(handicapBets.Eq(0).Text())
			g.Rate.HandicapBet1 = cleanBet(handicapBets.Eq(1).Text())
			g.Rate.HandicapPoint0 = text(handicapPoints.Eq(0))
			g.Rate.HandicapPoint1 = text(handicapPoints.Eq(1))

			totalBets := total.Find("span.highlight-odds")
			g.Rate.TotalBet0 = cleanBet(totalBets.Eq(0).Text())
			g.Rate.TotalBet1 = cleanBet(totalBets.Eq(1).Text())
			g.Rate.TotalPoint = cleanTotalPoint(total.Find("div.handicap-value-text").First().Text())

			leagues[current].Games = append(leagues[current].Games, g)
		})
	})

	return leagues, nil
}
