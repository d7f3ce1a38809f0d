package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/giftkart/storefront/internal/domain/verification"
)

var _ verification.Store = (*VerificationStore)(nil)

// VerificationStore keeps verification sessions and verified-phone tokens in
// redis, leaning on key expiry for the TTLs.
type VerificationStore struct {
	client *redis.Client
}

// NewVerificationStore returns a VerificationStore over the given client.
func NewVerificationStore(client *redis.Client) *VerificationStore {
	return &VerificationStore{client: client}
}

func sessionKey(phone string) string {
	return "verify:session:" + phone
}

func tokenKey(token string) string {
	return "verify:token:" + token
}

// PutSession stores the session under its phone number, replacing any prior
// session for that number.
func (s *VerificationStore) PutSession(ctx context.Context, sess *verification.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.Phone), data, ttl).Err(); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// GetSession loads the session for a phone number.
func (s *VerificationStore) GetSession(ctx context.Context, phone string) (*verification.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, verification.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	var sess verification.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes the session for a phone number.
func (s *VerificationStore) DeleteSession(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, sessionKey(phone)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// PutToken stores a verified-phone token.
func (s *VerificationStore) PutToken(ctx context.Context, token, phone string, ttl time.Duration) error {
	if err := s.client.Set(ctx, tokenKey(token), phone, ttl).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// GetToken resolves a token to its phone number.
func (s *VerificationStore) GetToken(ctx context.Context, token string) (string, error) {
	phone, err := s.client.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", verification.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting token: %w", err)
	}
	return phone, nil
}
