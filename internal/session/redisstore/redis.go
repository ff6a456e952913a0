// Package redisstore persists session carts in Redis so replicas share them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session"
)

// maxJitterMinutes spreads expirations so carts saved together do not all
// expire at once.
const maxJitterMinutes = 5

type Store struct {
	client  *redis.Client
	baseTTL time.Duration
}

func New(client *redis.Client, baseTTL time.Duration) *Store {
	return &Store{client: client, baseTTL: baseTTL}
}

func (s *Store) Load(ctx context.Context, sessionID string) ([]cart.Line, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	lines, err := cart.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", sessionID, err)
	}
	return lines, nil
}

func (s *Store) Save(ctx context.Context, sessionID string, snap cart.Snapshot) error {
	data, err := cart.Encode(snap)
	if err != nil {
		return err
	}

	jitter := time.Duration(rand.Intn(maxJitterMinutes)) * time.Minute
	if err := s.client.Set(ctx, key(sessionID), data, s.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func key(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
