package domain

import (
	"context"
	"time"
)

// CachedBoard is the last published board for a sport.
type CachedBoard struct {
	Sport     string    `json:"sport"`
	Board     Board     `json:"board"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoardCache keeps the last good board per sport so a restart can warm up.
type BoardCache interface {
	SetBoard(ctx context.Context, b CachedBoard) error
	GetBoard(ctx context.Context, sport string) (CachedBoard, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
