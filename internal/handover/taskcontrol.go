package handover

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// DefaultRevokeChannel is the pub/sub channel revocations are announced on.
const DefaultRevokeChannel = "odds_watch_revoke"

const (
	taskMetaPrefix = "task-meta-"
	revokedPrefix  = "task-revoked-"
	revokedTTL     = 24 * time.Hour
)

// Task statuses
const (
	TaskRunning  = "running"
	TaskFinished = "finished"
)

// TaskMeta is the result metadata kept for a run while it exists.
type TaskMeta struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	Attempt   int       `json:"attempt"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskMetaKey is the metadata key of a run.
func TaskMetaKey(runID string) string {
	return taskMetaPrefix + runID
}

// TaskControl terminates runs and manages their metadata, whichever process owns them.
type TaskControl interface {
	// Revoke asks the owner of runID to terminate it.
	Revoke(ctx context.Context, runID string) error
	// Revoked reports whether runID was revoked.
	Revoked(ctx context.Context, runID string) (bool, error)
	// Revocations streams revoked run ids until ctx is done.
	Revocations(ctx context.Context) (<-chan string, error)
	SaveMeta(ctx context.Context, meta TaskMeta) error
	// Forget removes the metadata of runID.
	Forget(ctx context.Context, runID string) error
	// ForgetAll removes every run's metadata and returns how many were removed.
	ForgetAll(ctx context.Context) (int, error)
}

// RedisTaskControl implements TaskControl with redis keys and pub/sub.
type RedisTaskControl struct {
	client  *redis.Client
	channel string
}

// NewRedisTaskControl creates a task control publishing on channel
func NewRedisTaskControl(client *redis.Client, channel string) *RedisTaskControl {
	if channel == "" {
		channel = DefaultRevokeChannel
	}
	return &RedisTaskControl{client: client, channel: channel}
}

// Revoke implements TaskControl.
func (c *RedisTaskControl) Revoke(ctx context.Context, runID string) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, revokedPrefix+runID, "1", revokedTTL)
	pipe.Publish(ctx, c.channel, runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke run %s: %w", runID, err)
	}
	return nil
}

// Revoked implements TaskControl.
func (c *RedisTaskControl) Revoked(ctx context.Context, runID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedPrefix+runID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read revocation of %s: %w", runID, err)
	}
	return n > 0, nil
}

// Revocations implements TaskControl.
func (c *RedisTaskControl) Revocations(ctx context.Context) (<-chan string, error) {
	sub := c.client.Subscribe(ctx, c.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// SaveMeta implements TaskControl.
func (c *RedisTaskControl) SaveMeta(ctx context.Context, meta TaskMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode task meta: %w", err)
	}
	if err := c.client.Set(ctx, TaskMetaKey(meta.RunID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save task meta of %s: %w", meta.RunID, err)
	}
	return nil
}

// Meta returns the stored metadata of runID.
func (c *RedisTaskControl) Meta(ctx context.Context, runID string) (*TaskMeta, error) {
	data, err := c.client.Get(ctx, TaskMetaKey(runID)).Bytes()
	if err != nil {
		return nil, err
	}
	var meta TaskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode task meta of %s: %w", runID, err)
	}
	return &meta, nil
}

// Forget implements TaskControl.
func (c *RedisTaskControl) Forget(ctx context.Context, runID string) error {
	if err := c.client.Del(ctx, TaskMetaKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to forget run %s: %w", runID, err)
	}
	return nil
}

// ForgetAll implements TaskControl.
func (c *RedisTaskControl) ForgetAll(ctx context.Context) (int, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, taskMetaPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan task meta: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete task meta: %w", err)
	}
	return len(keys), nil
}

// MemoryTaskControl implements TaskControl inside one process.
type MemoryTaskControl struct {
	cache       *cache.Cache
	mu          sync.Mutex
	subscribers []chan string
}

// NewMemoryTaskControl creates an empty task control
func NewMemoryTaskControl() *MemoryTaskControl {
	return &MemoryTaskControl{cache: cache.New(cache.NoExpiration, time.Minute)}
}

// Revoke implements TaskControl.
func (c *MemoryTaskControl) Revoke(_ context.Context, runID string) error {
	c.cache.Set(revokedPrefix+runID, true, revokedTTL)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- runID:
		default:
		}
	}
	return nil
}

// Revoked implements TaskControl.
func (c *MemoryTaskControl) Revoked(_ context.Context, runID string) (bool, error) {
	_, ok := c.cache.Get(revokedPrefix + runID)
	return ok, nil
}

// Revocations implements TaskControl.
func (c *MemoryTaskControl) Revocations(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)

	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subscribers {
			if sub == ch {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// SaveMeta implements TaskControl.
func (c *MemoryTaskControl) SaveMeta(_ context.Context, meta TaskMeta) error {
	c.cache.Set(TaskMetaKey(meta.RunID), meta, cache.NoExpiration)
	return nil
}

// Meta returns the stored metadata of runID.
func (c *MemoryTaskControl) Meta(runID string) (TaskMeta, bool) {
	v, ok := c.cache.Get(TaskMetaKey(runID))
	if !ok {
		return TaskMeta{}, false
	}
	return v.(TaskMeta), true
}

// Forget implements TaskControl.
func (c *MemoryTaskControl) Forget(_ context.Context, runID string) error {
	c.cache.Delete(TaskMetaKey(runID))
	return nil
}

// ForgetAll implements TaskControl.
func (c *MemoryTaskControl) ForgetAll(_ context.Context) (int, error) {
	n := 0
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, taskMetaPrefix) {
			c.cache.Delete(key)
			n++
		}
	}
	return n, nil
}
