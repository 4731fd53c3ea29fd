package models

import (
	"fmt"
	"sort"
	"strings"
)

// GameKey identifies one game inside a source: league plus both opponents.
type GameKey struct {
	League    string
	Opponent0 string
	Opponent1 string
}

// String returns a printable form of the key
func (k GameKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.League, k.Opponent0, k.Opponent1)
}

// Valid reports whether every part of the key is present
func (k GameKey) Valid() bool {
	return k.League != "" && k.Opponent0 != "" && k.Opponent1 != ""
}

// GameRecord is one game's identity, state and odds as extracted in one cycle.
type GameRecord struct {
	League     string       `json:"league_name,omitempty"`
	Opponent0  string       `json:"opponent_0"`
	Opponent1  string       `json:"opponent_1"`
	ScoreGame  string       `json:"score_game"`
	TimeGame   string       `json:"time_game"`
	Rate       RateSnapshot `json:"rate"`
	ServerTime string       `json:"server_time"`
	IsEndGame  bool         `json:"is_end_game"`
}

// KeyIn returns the identity key of the record within the given league.
func (g GameRecord) KeyIn(league string) GameKey {
	return GameKey{
		League:    strings.ToLower(league),
		Opponent0: strings.ToLower(g.Opponent0),
		Opponent1: strings.ToLower(g.Opponent1),
	}
}

// Key returns the identity key using the league stamped on the record.
func (g GameRecord) Key() GameKey {
	return g.KeyIn(g.League)
}

// SameGame reports whether two records describe the same pair of opponents.
func (g GameRecord) SameGame(other GameRecord) bool {
	return strings.EqualFold(g.Opponent0, other.Opponent0) &&
		strings.EqualFold(g.Opponent1, other.Opponent1)
}

// Valid reports whether the record has two distinct, non-empty opponents.
// Cards showing the same team twice are produced by broken page renders.
func (g GameRecord) Valid() bool {
	if g.Opponent0 == "" || g.Opponent1 == "" {
		return false
	}
	return !strings.EqualFold(g.Opponent0, g.Opponent1)
}

// MatchName returns the "opponent0:opponent1" label used in league feeds.
func (g GameRecord) MatchName() string {
	return strings.ToLower(g.Opponent0) + ":" + strings.ToLower(g.Opponent1)
}

// LeagueSnapshot maps a league display name to the games seen in one cycle.
type LeagueSnapshot map[string][]GameRecord

// Len returns the total number of records across leagues
func (s LeagueSnapshot) Len() int {
	n := 0
	for _, games := range s {
		n += len(games)
	}
	return n
}

// Leagues returns the league names in sorted order.
func (s LeagueSnapshot) Leagues() []string {
	leagues := make([]string, 0, len(s))
	for league := range s {
		leagues = append(leagues, league)
	}
	sort.Strings(leagues)
	return leagues
}

// EndedGameEntry tracks a previously seen game that is missing from recent cycles.
type EndedGameEntry struct {
	Record     GameRecord
	QuietCount int
}
