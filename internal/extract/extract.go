// Package extract reads a source's live page and turns it into a league snapshot.
package extract

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/odds-watch/internal/models"
)

var (
	// ErrPageUnchanged is returned when the game container is byte-identical to the last read.
	ErrPageUnchanged = errors.New("page unchanged since last extraction")
	// ErrNoContent is returned when the game container is missing from the page.
	ErrNoContent = errors.New("game container not found")
)

// moscow is the zone server_time is stamped in; fixed at UTC+3 since 2014.
var moscow = time.FixedZone("MSK", 3*60*60)

// Extractor produces the current snapshot of a source.
type Extractor interface {
	Extract(ctx context.Context) (models.LeagueSnapshot, error)
}

// PageSource returns the markup of the element matched by a CSS selector.
type PageSource interface {
	OuterHTML(ctx context.Context, selector string) (string, error)
}

// NameTranslator maps a team name as printed on the page to its canonical name.
type NameTranslator interface {
	Translate(ctx context.Context, name string) string
}

// PageExtractor reads the page, skips unchanged containers and parses the rest.
type PageExtractor struct {
	source     models.Source
	page       PageSource
	parser     Parser
	leagues    map[string]string
	translator NameTranslator
	now        func() time.Time

	lastHash string
}

// NewPageExtractor creates an extractor. leagues maps site league names to display names;
// games of other leagues are ignored.
func NewPageExtractor(source models.Source, page PageSource, parser Parser, leagues map[string]string, translator NameTranslator) *PageExtractor {
	return &PageExtractor{
		source:     source,
		page:       page,
		parser:     parser,
		leagues:    leagues,
		translator: translator,
		now:        time.Now,
	}
}

// Extract implements Extractor.
func (e *PageExtractor) Extract(ctx context.Context) (models.LeagueSnapshot, error) {
	html, err := e.page.OuterHTML(ctx, e.parser.ContainerSelector())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s page: %w", e.source.Name, err)
	}
	if strings.TrimSpace(html) == "" {
		return nil, ErrNoContent
	}

	sum := md5.Sum([]byte(html))
	hash := hex.EncodeToString(sum[:])
	if hash == e.lastHash {
		return nil, ErrPageUnchanged
	}

	raw, err := e.parser.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s page: %w", e.source.Name, err)
	}
	e.lastHash = hash

	serverTime := e.now().In(moscow).Format("15:04:05")
	snapshot := make(models.LeagueSnapshot)
	for _, league := range raw {
		display, ok := e.leagues[league.Name]
		if !ok {
			continue
		}
		if _, exists := snapshot[display]; !exists {
			snapshot[display] = []models.GameRecord{}
		}
		for _, g := range league.Games {
			snapshot[display] = append(snapshot[display], models.GameRecord{
				Opponent0:  e.teamName(ctx, g.Opponent0),
				Opponent1:  e.teamName(ctx, g.Opponent1),
				ScoreGame:  g.Score0 + ":" + g.Score1,
				TimeGame:   timeGame(g.Period, g.Clock),
				Rate:       g.Rate,
				ServerTime: serverTime,
			})
		}
	}
	return snapshot, nil
}

// Reset forgets the last container hash so the next read is always parsed.
func (e *PageExtractor) Reset() {
	e.lastHash = ""
}

func (e *PageExtractor) teamName(ctx context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if e.translator != nil {
		name = e.translator.Translate(ctx, name)
	}
	return strings.ToLower(name)
}

var periodLabels = map[string]string{
	"第一节": "I",
	"第二节": "II",
	"第三节": "III",
	"第四节": "IV",
}

// timeGame renders the quarter label and game clock, e.g. "II 04:12".
func timeGame(period, clock string) string {
	label := periodLabels[strings.TrimSpace(period)]
	return strings.TrimSpace(label + " " + strings.TrimSpace(clock))
}
