// Package verification gates checkout behind phone-number ownership: a
// short-lived numeric code is dispatched over SMS and must be verified before
// the orchestrator accepts an order.
//
// Session state is implicit in storage: no session means Unverified, a stored
// session means CodeSent, and a live token means Verified. Expiry and resend
// cooldowns are wall-clock timestamps, so they survive the client closing and
// reopening the checkout flow.
package verification

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Session is the server-side record for one phone number while a code is
// outstanding. At most one session exists per number; sending a new code
// supersedes any prior session. The code itself is never stored, only its
// keyed hash.
type Session struct {
	Phone             string    `json:"phone"`
	CodeHash          string    `json:"codeHash"`
	IssuedAt          time.Time `json:"issuedAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
	ResendAt          time.Time `json:"resendAt"`
	AttemptsRemaining int       `json:"attemptsRemaining"`
	Resends           int       `json:"resends"`
}

// Store errors.
var (
	ErrNoSession = errors.New("no verification session")
	ErrNoToken   = errors.New("no verification token")
)

// Store persists sessions and verified-phone tokens. Implementations must
// honor the supplied TTLs as an upper bound on record lifetime.
type Store interface {
	PutSession(ctx context.Context, s *Session, ttl time.Duration) error
	GetSession(ctx context.Context, phone string) (*Session, error)
	DeleteSession(ctx context.Context, phone string) error

	PutToken(ctx context.Context, token, phone string, ttl time.Duration) error
	GetToken(ctx context.Context, token string) (string, error)
}
