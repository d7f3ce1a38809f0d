package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/giftkart/storefront/internal/domain/checkout"
)

var _ checkout.IntentStore = (*IntentStore)(nil)

// IntentStore parks checkout intents keyed by gateway session ref. The TTL is
// the sole expiry mechanism; an abandoned payment attempt needs no sweeper.
type IntentStore struct {
	client *redis.Client
}

// NewIntentStore returns an IntentStore over the given client.
func NewIntentStore(client *redis.Client) *IntentStore {
	return &IntentStore{client: client}
}

func intentKey(sessionRef string) string {
	return "checkout:intent:" + sessionRef
}

// Put parks an intent under its session ref.
func (s *IntentStore) Put(ctx context.Context, sessionRef string, in *checkout.Intent, ttl time.Duration) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling intent: %w", err)
	}
	if err := s.client.Set(ctx, intentKey(sessionRef), data, ttl).Err(); err != nil {
		return fmt.Errorf("storing intent: %w", err)
	}
	return nil
}

// Get loads the intent parked for a session ref.
func (s *IntentStore) Get(ctx context.Context, sessionRef string) (*checkout.Intent, error) {
	data, err := s.client.Get(ctx, intentKey(sessionRef)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrNoIntent
	}
	if err != nil {
		return nil, fmt.Errorf("getting intent: %w", err)
	}

	var in checkout.Intent
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("unmarshaling intent: %w", err)
	}
	return &in, nil
}

// Delete discards a parked intent.
func (s *IntentStore) Delete(ctx context.Context, sessionRef string) error {
	if err := s.client.Del(ctx, intentKey(sessionRef)).Err(); err != nil {
		return fmt.Errorf("deleting intent: %w", err)
	}
	return nil
}
