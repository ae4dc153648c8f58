package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/service"
)

var _ service.HistoryMirror = (*RedisMirror)(nil)

const (
	// DefaultRedisTTL is how long an idle conversation is kept.
	DefaultRedisTTL = 24 * time.Hour
	redisKeyPrefix  = "spicetalk:history:"
)

// RedisMirror stores each identity's turns as a capped Redis list of JSON values.
type RedisMirror struct {
	rdb      redis.UniversalClient
	ttl      time.Duration
	maxTurns int
}

// NewRedisMirror creates a mirror that keeps at most maxTurns per identity.
func NewRedisMirror(rdb redis.UniversalClient, ttl time.Duration, maxTurns int) *RedisMirror {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &RedisMirror{rdb: rdb, ttl: ttl, maxTurns: maxTurns}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func historyKey(identityID string) string {
	return redisKeyPrefix + identityID
}

// AppendTurns pushes turns, trims the list and refreshes its TTL atomically.
func (m *RedisMirror) AppendTurns(ctx context.Context, identityID string, turns []model.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		values = append(values, data)
	}

	key := historyKey(identityID)
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-m.maxTurns), -1)
		pipe.Expire(ctx, key, m.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append turns: %w", err)
	}
	return nil
}

// LoadTurns returns up to limit of the newest turns, oldest first.
func (m *RedisMirror) LoadTurns(ctx context.Context, identityID string, limit int) ([]model.Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := m.rdb.LRange(ctx, historyKey(identityID), start, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	turns := make([]model.Turn, 0, len(raw))
	for _, item := range raw {
		var t model.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// ClearTurns deletes the identity's list.
func (m *RedisMirror) ClearTurns(ctx context.Context, identityID string) error {
	if err := m.rdb.Del(ctx, historyKey(identityID)).Err(); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}
