package ratelimit

import "context"

// RateLimiter throttles outbound provider calls per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}

// Nop allows everything; used when no Redis instance is configured.
type Nop struct{}

func (Nop) Allow(ctx context.Context, key string) (bool, error) { return true, nil }

func (Nop) Wait(ctx context.Context, key string) error { return nil }
