// Package cache is the redis-backed idempotency layer: it stops a
// retried control dispatch (book_appointment / final_outcome) from
// reaching the CRM twice for the same call.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyType namespaces idempotency keys the way the teacher's redis
// service namespaces cache keys.
type KeyType string

const (
	KeyBookAppointment KeyType = "dialer_bridge_book_appointment"
	KeyFinalOutcome    KeyType = "dialer_bridge_final_outcome"
)

var ErrKeyNotExist = redis.Nil

// Store is the idempotency/dedup cache used by ControlDispatcher.
type Store struct {
	client *redis.Client
}

// New dials redis at addr. A ping failure is returned, never panicked.
func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) key(kt KeyType, callID string) string {
	return fmt.Sprintf("%s:%s", string(kt), callID)
}

// MarkIfAbsent sets the dedup key with the given TTL and reports
// whether this call actually claimed it (false means some earlier
// dispatch already won the race for this callID/KeyType).
func (s *Store) MarkIfAbsent(ctx context.Context, kt KeyType, callID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(kt, callID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: SETNX %s: %w", kt, err)
	}
	return ok, nil
}

// Seen reports whether the dedup key is already set, without claiming it.
func (s *Store) Seen(ctx context.Context, kt KeyType, callID string) (bool, error) {
	_, err := s.client.Get(ctx, s.key(kt, callID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: GET %s: %w", kt, err)
	}
	return true, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
