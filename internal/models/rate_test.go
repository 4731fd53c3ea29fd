package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBet(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "1.65", "1.65"},
		{"padded", " 1.9 ", "1.9"},
		{"dash placeholder", "-", "0"},
		{"empty", "", "0"},
		{"garbage", "n/a", "0"},
		{"integer", "2", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBet(tt.input)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestRateSnapshot_NormalizeIsIdempotent(t *testing.T) {
	rates := []RateSnapshot{
		{TotalPoint: "165.5", TotalBet0: "1.85", TotalBet1: "-", HandicapPoint0: "-3.5", HandicapBet0: "", HandicapPoint1: "+3.5", HandicapBet1: "1.650"},
		{},
		{TotalBet0: "abc", TotalBet1: "1.6", HandicapBet0: "2", HandicapBet1: "0"},
	}

	for _, r := range rates {
		once := r.Normalize()
		twice := once.Denormalize().Normalize()
		for i := 0; i < BetCount; i++ {
			assert.True(t, once.Values[i].Equal(twice.Values[i]), "bet %s differs", BetNames[i])
		}
		canonical := once.Denormalize()
		assert.Equal(t, canonical, canonical.Normalize().Denormalize())
	}
}

func TestRateSnapshot_NormalizeRetainsDisplay(t *testing.T) {
	r := RateSnapshot{TotalPoint: "大 165.5", TotalBet0: "-", HandicapBet1: "1.70"}

	n := r.Normalize()

	assert.Equal(t, r, n.Display)
	assert.True(t, n.Values[TotalBet0].IsZero())
	assert.Equal(t, "1.7", n.Values[HandicapBet1].String())
	assert.Len(t, n.Bets(), BetCount)
}

func TestRateSnapshot_Equal(t *testing.T) {
	a := RateSnapshot{TotalPoint: "160.5", TotalBet0: "1.8", TotalBet1: "1.9"}
	b := a
	assert.True(t, a.Equal(b))

	b.TotalBet1 = "1.95"
	assert.False(t, a.Equal(b))
}

func TestNewStoredRate(t *testing.T) {
	record := GameRecord{
		Opponent0:  "kazan",
		Opponent1:  "sochi",
		TimeGame:   "II 04:12",
		ServerTime: "14:03:59",
		Rate: RateSnapshot{
			TotalPoint: "150.5", TotalBet0: "1.66", TotalBet1: "-",
			HandicapPoint0: "-2.5", HandicapBet0: "1.9", HandicapPoint1: "+2.5", HandicapBet1: "",
		},
	}

	stored := NewStoredRate(record).WithMatch(record)

	assert.Equal(t, 1.66, stored.TotalBet0)
	assert.Equal(t, 0.0, stored.TotalBet1)
	assert.Equal(t, 0.0, stored.HandicapBet1)
	assert.Equal(t, "kazan:sochi", stored.Match)

	data, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_bet_0":1.66`)
	assert.Contains(t, string(data), `"match":"kazan:sochi"`)
}
