// Package detector decides which extracted game records are new or changed
// compared to the previous cycle of the same league.
package detector

import (
	"github.com/yourusername/odds-watch/internal/models"
)

// Detect reports whether candidate should be emitted given the previous
// cycle's records of the same league.
//
// Records naming the same team twice are never emitted. A candidate with no
// previous record of the same identity is new; a known one is emitted only
// when its rate differs from the stored record.
func Detect(previous []models.GameRecord, candidate models.GameRecord) bool {
	if !candidate.Valid() {
		return false
	}
	prev, found := lookup(previous, candidate)
	if !found {
		return true
	}
	return !prev.Rate.Equal(candidate.Rate)
}

// DetectLeague runs Detect for every candidate of one league.
// Without a baseline for the league nothing is emitted; the first cycle only
// establishes what later cycles are compared against.
func DetectLeague(previous []models.GameRecord, hasBaseline bool, candidates []models.GameRecord) []models.GameRecord {
	if !hasBaseline {
		return nil
	}

	var emitted []models.GameRecord
	for _, candidate := range candidates {
		if Detect(previous, candidate) {
			emitted = append(emitted, candidate)
		}
	}
	return emitted
}

func lookup(previous []models.GameRecord, candidate models.GameRecord) (models.GameRecord, bool) {
	for _, prev := range previous {
		if prev.SameGame(candidate) {
			return prev, true
		}
	}
	return models.GameRecord{}, false
}
