package publish

import (
	"context"

	"github.com/yourusername/odds-watch/internal/models"
)

// HistoryWriter persists batches into the match history.
type HistoryWriter interface {
	SaveBatch(ctx context.Context, batch *models.Batch) error
}

// HistoryPublisher records every batch in the relational match history.
type HistoryPublisher struct {
	writer HistoryWriter
}

// NewHistoryPublisher creates a history sink
func NewHistoryPublisher(writer HistoryWriter) *HistoryPublisher {
	return &HistoryPublisher{writer: writer}
}

// Publish saves the batch
func (h *HistoryPublisher) Publish(ctx context.Context, batch *models.Batch) error {
	return h.writer.SaveBatch(ctx, batch)
}
