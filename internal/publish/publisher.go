// Package publish forwards aggregated cycle batches to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/metrics"
	"github.com/yourusername/odds-watch/internal/models"
)

// Publisher delivers one batch downstream.
type Publisher interface {
	Publish(ctx context.Context, batch *models.Batch) error
}

// Sink is a named publisher, named for logs and metrics.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Multi fans a batch out to several sinks. Every sink is attempted.
type Multi struct {
	sinks  []Sink
	logger *logrus.Logger
}

// NewMulti creates a fan-out publisher
func NewMulti(logger *logrus.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: logger}
}

// Publish sends the batch to every sink and joins the failures.
func (m *Multi) Publish(ctx context.Context, batch *models.Batch) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Publisher.Publish(ctx, batch); err != nil {
			metrics.RecordPublish(sink.Name, "failed")
			m.logger.WithFields(logrus.Fields{
				"sink":   sink.Name,
				"source": batch.Source.Name,
				"error":  err.Error(),
			}).Error("Failed to publish batch")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name, err))
			continue
		}
		metrics.RecordPublish(sink.Name, "ok")
	}
	return errors.Join(errs...)
}

// LogPublisher writes batches to the log, used in debug mode.
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a log-only publisher
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the encoded batch
func (p *LogPublisher) Publish(ctx context.Context, batch *models.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	p.logger.WithFields(logrus.Fields{
		"source":  batch.Source.Name,
		"records": batch.Size(),
	}).Debug("Batch (debug mode, not sent): " + string(data))
	return nil
}
