package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// BoardCache implements domain.BoardCache.
//
// Key schema:
//
//	board:{sport} - hash with fields "data" (JSON CachedBoard) and "updated_at"
//	                (unix millis)
type BoardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBoardCache creates a BoardCache whose entries expire after ttl.
func NewBoardCache(c *Client, ttl time.Duration) *BoardCache {
	return &BoardCache{rdb: c.Underlying(), ttl: ttl}
}

func boardKey(sport string) string { return "board:" + strings.ToLower(sport) }

// SetBoard stores b under its sport, replacing any previous entry.
func (bc *BoardCache) SetBoard(ctx context.Context, b domain.CachedBoard) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("redis: marshal board %s: %w", b.Sport, err)
	}

	key := boardKey(b.Sport)
	pipe := bc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data, "updated_at", b.UpdatedAt.UnixMilli())
	if bc.ttl > 0 {
		pipe.Expire(ctx, key, bc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set board %s: %w", b.Sport, err)
	}
	return nil
}

// GetBoard returns the cached board for sport, or domain.ErrNotFound.
func (bc *BoardCache) GetBoard(ctx context.Context, sport string) (domain.CachedBoard, error) {
	data, err := bc.rdb.HGet(ctx, boardKey(sport), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CachedBoard{}, domain.ErrNotFound
		}
		return domain.CachedBoard{}, fmt.Errorf("redis: get board %s: %w", sport, err)
	}

	var b domain.CachedBoard
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.CachedBoard{}, fmt.Errorf("redis: unmarshal board %s: %w", sport, err)
	}
	return b, nil
}

// Compile-time interface check.
var _ domain.BoardCache = (*BoardCache)(nil)
