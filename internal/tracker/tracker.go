// Package tracker retires games that stopped appearing on a source page.
//
// Every game seen in the previous cycle but missing from the current one gets
// a quiet counter. The counter grows by one for each further cycle the game
// stays missing and is dropped as soon as the game shows up again. When the
// counter reaches the threshold the game is emitted once as ended.
package tracker

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/models"
)

// DefaultThreshold is the number of quiet cycles before a game is ended.
const DefaultThreshold = 2000

// Tracker owns the ended-game entries of one source.
type Tracker struct {
	threshold int
	entries   map[models.GameKey]*models.EndedGameEntry
	logger    *logrus.Logger
	mu        sync.Mutex
}

// New creates a tracker. A non-positive threshold falls back to DefaultThreshold.
func New(threshold int, logger *logrus.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Tracker{
		threshold: threshold,
		entries:   make(map[models.GameKey]*models.EndedGameEntry),
		logger:    logger,
	}
}

// Observe advances every entry by one cycle and returns the games that ended.
// Returned records carry IsEndGame=true and their league name.
func (t *Tracker) Observe(previous, current models.LeagueSnapshot) []models.GameRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	present := index(current)

	// Entries already tracked: reappeared games are forgotten, the rest grow.
	for key, entry := range t.entries {
		if _, ok := present[key]; ok {
			delete(t.entries, key)
			continue
		}
		entry.QuietCount++
	}

	// Games that were on the page last cycle and are gone now.
	for league, games := range previous {
		for _, g := range games {
			key := g.KeyIn(league)
			if !key.Valid() {
				t.logger.WithFields(logrus.Fields{
					"league":     league,
					"opponent_0": g.Opponent0,
					"opponent_1": g.Opponent1,
				}).Warn("Skipping game with malformed key")
				continue
			}
			if _, ok := present[key]; ok {
				continue
			}
			if _, tracked := t.entries[key]; tracked {
				continue
			}
			record := g
			record.League = league
			t.entries[key] = &models.EndedGameEntry{Record: record, QuietCount: 1}
		}
	}

	var ended []models.GameRecord
	for key, entry := range t.entries {
		if entry.QuietCount < t.threshold {
			continue
		}
		record := entry.Record
		record.IsEndGame = true
		ended = append(ended, record)
		delete(t.entries, key)

		t.logger.WithFields(logrus.Fields{
			"league":      record.League,
			"opponent_0":  record.Opponent0,
			"opponent_1":  record.Opponent1,
			"quiet_count": entry.QuietCount,
		}).Info("Game ended")
	}

	sort.Slice(ended, func(i, j int) bool {
		return ended[i].Key().String() < ended[j].Key().String()
	})
	return ended
}

// Len returns the number of games currently in the quiet state
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// QuietCount returns the quiet counter of a game and whether it is tracked.
func (t *Tracker) QuietCount(key models.GameKey) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		return 0, false
	}
	return entry.QuietCount, true
}

// Threshold returns the configured eviction threshold
func (t *Tracker) Threshold() int {
	return t.threshold
}

// Reset drops every entry, used after a session restart.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[models.GameKey]*models.EndedGameEntry)
}

func index(snapshot models.LeagueSnapshot) map[models.GameKey]struct{} {
	keys := make(map[models.GameKey]struct{}, snapshot.Len())
	for league, games := range snapshot {
		for _, g := range games {
			keys[g.KeyIn(league)] = struct{}{}
		}
	}
	return keys
}
