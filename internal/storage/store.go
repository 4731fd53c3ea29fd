// Package storage keeps the bounded per-game and per-league odds lists shared
// between workers and the query side.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/odds-watch/internal/models"
)

// DefaultListCap bounds every list; the oldest items are dropped beyond it.
const DefaultListCap = 2400

// Store is a key-value store of capped lists.
type Store interface {
	// Append pushes value to the tail of the list under key and trims it to maxLen items.
	Append(ctx context.Context, key string, value []byte, maxLen int64) error
	// Last returns the most recent item of the list, or models.ErrNotFound.
	Last(ctx context.Context, key string) ([]byte, error)
	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string) error
	// Flush removes every key.
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// AllDataKey is the per-game list of every emitted rate of a source.
func AllDataKey(source models.Source, league, opponent0, opponent1 string) string {
	return strings.ToLower(fmt.Sprintf("%s_all_data, %s, %s, %s", source.Domain, league, opponent0, opponent1))
}

// LeagueFeedKey is the per-league list of every emitted rate of a source.
func LeagueFeedKey(source models.Source, league string) string {
	return strings.ToLower(fmt.Sprintf("%s_all_data, %s", source.Domain, league))
}

// InterestingKey is the per-game list of rates within the store ceiling.
func InterestingKey(source models.Source, league, opponent0, opponent1 string) string {
	return strings.ToLower(fmt.Sprintf("%s, %s, %s, %s", source.Domain, league, opponent0, opponent1))
}

// GameKeys returns every per-game key of a game across all sources.
func GameKeys(league, opponent0, opponent1 string) []string {
	keys := make([]string, 0, 2*len(models.Sources))
	for _, s := range models.Sources {
		keys = append(keys,
			InterestingKey(s, league, opponent0, opponent1),
			AllDataKey(s, league, opponent0, opponent1),
		)
	}
	return keys
}

// RateStore appends and reads StoredRate items on top of a Store.
type RateStore struct {
	store   Store
	listCap int64
}

// NewRateStore creates a rate store; a non-positive cap falls back to DefaultListCap.
func NewRateStore(store Store, listCap int64) *RateStore {
	if listCap <= 0 {
		listCap = DefaultListCap
	}
	return &RateStore{store: store, listCap: listCap}
}

// Store returns the underlying store
func (r *RateStore) Store() Store {
	return r.store
}

// AppendRate encodes the rate and appends it under key.
func (r *RateStore) AppendRate(ctx context.Context, key string, rate models.StoredRate) error {
	data, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("failed to encode rate: %w", err)
	}
	if err := r.store.Append(ctx, key, data, r.listCap); err != nil {
		return fmt.Errorf("failed to append to %q: %w", key, err)
	}
	return nil
}

// LastRate returns the latest rate under key, or nil when the list is empty.
func (r *RateStore) LastRate(ctx context.Context, key string) (*models.StoredRate, error) {
	data, err := r.store.Last(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}

	var rate models.StoredRate
	if err := json.Unmarshal(data, &rate); err != nil {
		return nil, fmt.Errorf("failed to decode rate under %q: %w", key, err)
	}
	return &rate, nil
}

// DeleteGame removes every per-game key of a game across all sources.
func (r *RateStore) DeleteGame(ctx context.Context, league, opponent0, opponent1 string) error {
	keys := GameKeys(league, opponent0, opponent1)
	if err := r.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete game keys: %w", err)
	}
	return nil
}
