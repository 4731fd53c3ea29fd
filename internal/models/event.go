package models

import "encoding/json"

// Batch is the aggregated downstream event of one cycle.
type Batch struct {
	Source  Source
	Leagues map[string][]GameRecord
}

// NewBatch creates an empty batch for a source
func NewBatch(source Source) *Batch {
	return &Batch{Source: source, Leagues: make(map[string][]GameRecord)}
}

// Add appends a record to its league
func (b *Batch) Add(league string, record GameRecord) {
	b.Leagues[league] = append(b.Leagues[league], record)
}

// Empty reports whether no league carries a record.
func (b *Batch) Empty() bool {
	for _, games := range b.Leagues {
		if len(games) > 0 {
			return false
		}
	}
	return true
}

// Size returns the number of records in the batch
func (b *Batch) Size() int {
	n := 0
	for _, games := range b.Leagues {
		n += len(games)
	}
	return n
}

// MarshalJSON encodes the batch as {"<domain>": {"<league>": [records]}}, dropping empty leagues.
func (b *Batch) MarshalJSON() ([]byte, error) {
	leagues := make(map[string][]GameRecord, len(b.Leagues))
	for league, games := range b.Leagues {
		if len(games) > 0 {
			leagues[league] = games
		}
	}
	return json.Marshal(map[string]map[string][]GameRecord{b.Source.Domain: leagues})
}

// StoredRate is the list item written to the key-value store for a game.
type StoredRate struct {
	TotalPoint     string  `json:"total_point"`
	TotalBet0      float64 `json:"total_bet_0"`
	TotalBet1      float64 `json:"total_bet_1"`
	HandicapPoint0 string  `json:"handicap_point_0"`
	HandicapBet0   float64 `json:"handicap_bet_0"`
	HandicapPoint1 string  `json:"handicap_point_1"`
	HandicapBet1   float64 `json:"handicap_bet_1"`
	ServerTime     string  `json:"server_time"`
	TimeGame       string  `json:"time_game"`
	Match          string  `json:"match,omitempty"`
}

// NewStoredRate builds the stored form of a record's odds.
func NewStoredRate(record GameRecord) StoredRate {
	n := record.Rate.Normalize()
	return StoredRate{
		TotalPoint:     record.Rate.TotalPoint,
		TotalBet0:      n.Float(TotalBet0),
		TotalBet1:      n.Float(TotalBet1),
		HandicapPoint0: record.Rate.HandicapPoint0,
		HandicapBet0:   n.Float(HandicapBet0),
		HandicapPoint1: record.Rate.HandicapPoint1,
		HandicapBet1:   n.Float(HandicapBet1),
		ServerTime:     record.ServerTime,
		TimeGame:       record.TimeGame,
	}
}

// WithMatch returns a copy labelled with the match name for league feeds.
func (s StoredRate) WithMatch(record GameRecord) StoredRate {
	s.Match = record.MatchName()
	return s
}
