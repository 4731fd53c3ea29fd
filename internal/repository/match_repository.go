package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/odds-watch/internal/database"
	"github.com/yourusername/odds-watch/internal/models"
)

var matchColumns = []string{
	"source", "league", "opponent_0", "opponent_1", "score_game", "time_game", "server_time",
	"total_point", "total_bet_0", "total_bet_1",
	"handicap_point_0", "handicap_bet_0", "handicap_point_1", "handicap_bet_1",
	"is_end_game", "recorded_at",
}

// MatchRow is one stored observation of a game.
type MatchRow struct {
	Source     string
	League     string
	Opponent0  string
	Opponent1  string
	ScoreGame  string
	TimeGame   string
	ServerTime string
	Rate       models.StoredRate
	IsEndGame  bool
	RecordedAt time.Time
}

// PostgresMatchRepository implements MatchRepository for PostgreSQL
type PostgresMatchRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewPostgresMatchRepository creates a new match repository
func NewPostgresMatchRepository(db *database.DB) *PostgresMatchRepository {
	return &PostgresMatchRepository{db: db, now: time.Now}
}

// BatchRows flattens a batch into rows in league order.
func BatchRows(batch *models.Batch, recordedAt time.Time) [][]any {
	leagues := make([]string, 0, len(batch.Leagues))
	for league := range batch.Leagues {
		leagues = append(leagues, league)
	}
	sort.Strings(leagues)

	rows := make([][]any, 0, batch.Size())
	for _, league := range leagues {
		for _, g := range batch.Leagues[league] {
			r := models.NewStoredRate(g)
			rows = append(rows, []any{
				batch.Source.Name, league, g.Opponent0, g.Opponent1, g.ScoreGame, g.TimeGame, g.ServerTime,
				r.TotalPoint, r.TotalBet0, r.TotalBet1,
				r.HandicapPoint0, r.HandicapBet0, r.HandicapPoint1, r.HandicapBet1,
				g.IsEndGame, recordedAt,
			})
		}
	}
	return rows
}

// SaveBatch inserts every record of the batch using COPY
func (m *PostgresMatchRepository) SaveBatch(ctx context.Context, batch *models.Batch) error {
	rows := BatchRows(batch, m.now().UTC())
	if len(rows) == 0 {
		return nil
	}

	count, err := m.db.GetPool().CopyFrom(ctx, pgx.Identifier{"matches"}, matchColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to batch insert matches: %w", err)
	}
	if count != int64(len(rows)) {
		return fmt.Errorf("inserted %d rows, expected %d", count, len(rows))
	}
	return nil
}

// ResetMatches removes the whole match history
func (m *PostgresMatchRepository) ResetMatches(ctx context.Context) error {
	if _, err := m.db.GetPool().Exec(ctx, "TRUNCATE TABLE matches RESTART IDENTITY"); err != nil {
		return fmt.Errorf("failed to reset matches: %w", err)
	}
	return nil
}

// History returns the observations of one game, oldest first
func (m *PostgresMatchRepository) History(ctx context.Context, source, league, opponent0, opponent1 string, limit int) ([]MatchRow, error) {
	query := `
		SELECT source, league, opponent_0, opponent_1, score_game, time_game, server_time,
		       total_point, total_bet_0, total_bet_1,
		       handicap_point_0, handicap_bet_0, handicap_point_1, handicap_bet_1,
		       is_end_game, recorded_at
		FROM matches
		WHERE source = $1 AND league = $2 AND opponent_0 = $3 AND opponent_1 = $4
		ORDER BY recorded_at ASC, id ASC
		LIMIT $5
	`

	rows, err := m.db.GetPool().Query(ctx, query, source, league, opponent0, opponent1, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var r MatchRow
		if err := rows.Scan(
			&r.Source, &r.League, &r.Opponent0, &r.Opponent1, &r.ScoreGame, &r.TimeGame, &r.ServerTime,
			&r.Rate.TotalPoint, &r.Rate.TotalBet0, &r.Rate.TotalBet1,
			&r.Rate.HandicapPoint0, &r.Rate.HandicapBet0, &r.Rate.HandicapPoint1, &r.Rate.HandicapBet1,
			&r.IsEndGame, &r.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		r.Rate.ServerTime = r.ServerTime
		r.Rate.TimeGame = r.TimeGame
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return out, nil
}
