// Package handover keeps one registered run per source and hands work over
// from a superseded run to its successor after a grace period.
package handover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrRegistrationConflict is returned when the active run kept changing under a registration.
var ErrRegistrationConflict = errors.New("active run changed during registration")

// Registry stores the active run id of each source.
type Registry interface {
	// Active returns the registered run id, or "" when none is registered.
	Active(ctx context.Context, source string) (string, error)
	// CompareAndRegister records runID only if the active run is still expected.
	CompareAndRegister(ctx context.Context, source, expected, runID string) (bool, error)
	// Heartbeat marks runID of source as alive for ttl.
	Heartbeat(ctx context.Context, source, runID string, ttl time.Duration) error
	// Alive reports whether any run of source sent a heartbeat within its ttl.
	Alive(ctx context.Context, source string) (bool, error)
}

// ActiveKey is the registry key of a source.
func ActiveKey(source string) string {
	return "active_parser_" + source
}

// HeartbeatKey is the liveness key of a source.
func HeartbeatKey(source string) string {
	return "parser_heartbeat_" + source
}

// RedisRegistry implements Registry on plain redis keys.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry creates a new redis registry
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

// Active implements Registry.
func (r *RedisRegistry) Active(ctx context.Context, source string) (string, error) {
	runID, err := r.client.Get(ctx, ActiveKey(source)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active run of %s: %w", source, err)
	}
	return runID, nil
}

var errUnexpectedRun = errors.New("unexpected active run")

// CompareAndRegister implements Registry with WATCH/MULTI.
func (r *RedisRegistry) CompareAndRegister(ctx context.Context, source, expected, runID string) (bool, error) {
	key := ActiveKey(source)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			current = ""
		} else if err != nil {
			return err
		}
		if current != expected {
			return errUnexpectedRun
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, runID, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errUnexpectedRun), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("failed to register run of %s: %w", source, err)
	}
}

// Heartbeat implements Registry.
func (r *RedisRegistry) Heartbeat(ctx context.Context, source, runID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, HeartbeatKey(source), runID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write heartbeat of %s: %w", source, err)
	}
	return nil
}

// Alive implements Registry.
func (r *RedisRegistry) Alive(ctx context.Context, source string) (bool, error) {
	n, err := r.client.Exists(ctx, HeartbeatKey(source)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read heartbeat of %s: %w", source, err)
	}
	return n > 0, nil
}

// MemoryRegistry implements Registry for a single process.
type MemoryRegistry struct {
	cache *cache.Cache
	mu    sync.Mutex
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{cache: cache.New(cache.NoExpiration, time.Minute)}
}

// Active implements Registry.
func (r *MemoryRegistry) Active(_ context.Context, source string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked(source), nil
}

func (r *MemoryRegistry) activeLocked(source string) string {
	if v, ok := r.cache.Get(ActiveKey(source)); ok {
		return v.(string)
	}
	return ""
}

// CompareAndRegister implements Registry.
func (r *MemoryRegistry) CompareAndRegister(_ context.Context, source, expected, runID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeLocked(source) != expected {
		return false, nil
	}
	r.cache.Set(ActiveKey(source), runID, cache.NoExpiration)
	return true, nil
}

// Heartbeat implements Registry.
func (r *MemoryRegistry) Heartbeat(_ context.Context, source, runID string, ttl time.Duration) error {
	r.cache.Set(HeartbeatKey(source), runID, ttl)
	return nil
}

// Alive implements Registry.
func (r *MemoryRegistry) Alive(_ context.Context, source string) (bool, error) {
	_, ok := r.cache.Get(HeartbeatKey(source))
	return ok, nil
}
