package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/odds-watch/internal/config"
)

// Schema creates the match history table when it does not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS matches (
	id               BIGSERIAL PRIMARY KEY,
	source           TEXT        NOT NULL,
	league           TEXT        NOT NULL,
	opponent_0       TEXT        NOT NULL,
	opponent_1       TEXT        NOT NULL,
	score_game       TEXT        NOT NULL DEFAULT '',
	time_game        TEXT        NOT NULL DEFAULT '',
	server_time      TEXT        NOT NULL DEFAULT '',
	total_point      TEXT        NOT NULL DEFAULT '',
	total_bet_0      DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_bet_1      DOUBLE PRECISION NOT NULL DEFAULT 0,
	handicap_point_0 TEXT        NOT NULL DEFAULT '',
	handicap_bet_0   DOUBLE PRECISION NOT NULL DEFAULT 0,
	handicap_point_1 TEXT        NOT NULL DEFAULT '',
	handicap_bet_1   DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_end_game      BOOLEAN     NOT NULL DEFAULT FALSE,
	recorded_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS matches_game_idx ON matches (source, league, opponent_0, opponent_1, recorded_at);
`

// Initialize creates a database connection pool and ensures the schema exists
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	err = db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, Schema)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
