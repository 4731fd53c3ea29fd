package repository

import (
	"context"

	"github.com/yourusername/odds-watch/internal/models"
)

// MatchRepository defines the interface for match history access
type MatchRepository interface {
	SaveBatch(ctx context.Context, batch *models.Batch) error
	ResetMatches(ctx context.Context) error
	History(ctx context.Context, source, league, opponent0, opponent1 string, limit int) ([]MatchRow, error)
}
