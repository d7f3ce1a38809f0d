package verification

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/giftkart/storefront/internal/sms"
)

// Gate failure modes surfaced to callers.
var (
	ErrInvalidPhone      = errors.New("malformed phone number")
	ErrNoActiveCode      = errors.New("no active code for this phone number")
	ErrCodeExpired       = errors.New("code expired")
	ErrAttemptsExhausted = errors.New("verification attempts exhausted")
	ErrTokenInvalid      = errors.New("verification token invalid or expired")
)

// InvalidCodeError reports a mismatched code together with how many attempts
// remain before the session is invalidated.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.AttemptsRemaining)
}

// CooldownActiveError reports a resend request before the cooldown elapsed.
type CooldownActiveError struct {
	SecondsRemaining int
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("resend cooldown active, retry in %ds", e.SecondsRemaining)
}

// Config holds the gate's timing and sizing knobs.
type Config struct {
	CodeLength     int
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	ResendMax      time.Duration
	MaxAttempts    int
	TokenTTL       time.Duration
	// Pepper keys the HMAC over stored code hashes.
	Pepper string
}

// SendResult reports a dispatched code and the cooldown before a resend is
// accepted.
type SendResult struct {
	CooldownSeconds int
	ExpiresAt       time.Time
}

// VerifyResult carries the token checkout trusts in place of the raw phone
// number.
type VerifyResult struct {
	Token     string
	ExpiresAt time.Time
}

// Gate issues and checks verification codes. One active session per phone
// number; a new SendCode supersedes any prior session for that number.
type Gate struct {
	store  Store
	sms    sms.Dispatcher
	cfg    Config
	resend ResendPolicy

	// Injection points for tests.
	now     func() time.Time
	genCode func(length int) (string, error)
}

// NewGate creates a verification gate.
func NewGate(store Store, dispatcher sms.Dispatcher, cfg Config) *Gate {
	return &Gate{
		store:   store,
		sms:     dispatcher,
		cfg:     cfg,
		resend:  ResendPolicy{Base: cfg.ResendCooldown, Max: cfg.ResendMax},
		now:     time.Now,
		genCode: randomCode,
	}
}

// SendCode validates the phone number, dispatches a fresh code over SMS, and
// opens a session. SMS dispatch failure fails the whole operation; no session
// is stored for a code the user can never have received.
func (g *Gate) SendCode(ctx context.Context, phone string) (*SendResult, error) {
	if !validPhone(phone) {
		return nil, ErrInvalidPhone
	}
	return g.dispatch(ctx, phone, 0)
}

// ResendCode issues a new code for an existing session once the cooldown has
// elapsed, resetting attempts and extending expiry. Without a prior session it
// behaves like SendCode.
func (g *Gate) ResendCode(ctx context.Context, phone string) (*SendResult, error) {
	if !validPhone(phone) {
		return nil, ErrInvalidPhone
	}

	s, err := g.store.GetSession(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return g.dispatch(ctx, phone, 0)
		}
		return nil, errors.Wrap(err, "get session")
	}

	now := g.now()
	if now.Before(s.ResendAt) {
		remaining := int(s.ResendAt.Sub(now).Seconds() + 0.999)
		return nil, &CooldownActiveError{SecondsRemaining: remaining}
	}

	return g.dispatch(ctx, phone, s.Resends+1)
}

// VerifyCode checks a submitted code with a constant-time comparison. On match
// the session is consumed and a short-lived token is issued; on mismatch the
// remaining attempt count is reported, and exhausting it invalidates the
// session so the user must request a fresh code.
func (g *Gate) VerifyCode(ctx context.Context, phone, code string) (*VerifyResult, error) {
	if !validPhone(phone) {
		return nil, ErrInvalidPhone
	}

	s, err := g.store.GetSession(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, ErrNoActiveCode
		}
		return nil, errors.Wrap(err, "get session")
	}

	now := g.now()
	if now.After(s.ExpiresAt) {
		_ = g.store.DeleteSession(ctx, phone)
		return nil, ErrCodeExpired
	}

	want, err := hex.DecodeString(s.CodeHash)
	if err != nil {
		return nil, errors.Wrap(err, "decode stored code hash")
	}
	got := g.hashCode(phone, code)

	if subtle.ConstantTimeCompare(want, got) != 1 {
		s.AttemptsRemaining--
		if s.AttemptsRemaining <= 0 {
			if err := g.store.DeleteSession(ctx, phone); err != nil {
				return nil, errors.Wrap(err, "invalidate session")
			}
			return nil, ErrAttemptsExhausted
		}
		if err := g.store.PutSession(ctx, s, s.ExpiresAt.Sub(now)); err != nil {
			return nil, errors.Wrap(err, "update session")
		}
		return nil, &InvalidCodeError{AttemptsRemaining: s.AttemptsRemaining}
	}

	if err := g.store.DeleteSession(ctx, phone); err != nil {
		return nil, errors.Wrap(err, "consume session")
	}

	token := uuid.New().String()
	if err := g.store.PutToken(ctx, token, phone, g.cfg.TokenTTL); err != nil {
		return nil, errors.Wrap(err, "store token")
	}

	return &VerifyResult{Token: token, ExpiresAt: now.Add(g.cfg.TokenTTL)}, nil
}

// CheckToken resolves a verification token to the phone number it was issued
// for. Expired or unknown tokens report ErrTokenInvalid.
func (g *Gate) CheckToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}
	phone, err := g.store.GetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return "", ErrTokenInvalid
		}
		return "", errors.Wrap(err, "get token")
	}
	return phone, nil
}

// dispatch generates, sends, and records a code. resends is the count of
// resends this session has already seen; it drives the cooldown backoff.
func (g *Gate) dispatch(ctx context.Context, phone string, resends int) (*SendResult, error) {
	code, err := g.genCode(g.cfg.CodeLength)
	if err != nil {
		return nil, errors.Wrap(err, "generate code")
	}

	msg := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(g.cfg.CodeTTL.Minutes()))
	if err := g.sms.Send(ctx, phone, msg); err != nil {
		return nil, errors.Wrap(err, "dispatch code")
	}

	now := g.now()
	cooldown := g.resend.Cooldown(resends)
	s := &Session{
		Phone:             phone,
		CodeHash:          hex.EncodeToString(g.hashCode(phone, code)),
		IssuedAt:          now,
		ExpiresAt:         now.Add(g.cfg.CodeTTL),
		ResendAt:          now.Add(cooldown),
		AttemptsRemaining: g.cfg.MaxAttempts,
		Resends:           resends,
	}
	if err := g.store.PutSession(ctx, s, g.cfg.CodeTTL); err != nil {
		return nil, errors.Wrap(err, "store session")
	}

	return &SendResult{
		CooldownSeconds: int(cooldown.Seconds()),
		ExpiresAt:       s.ExpiresAt,
	}, nil
}

// hashCode computes HMAC-SHA256(pepper, phone|code). Binding the phone number
// into the hash prevents a code issued for one number verifying another.
func (g *Gate) hashCode(phone, code string) []byte {
	mac := hmac.New(sha256.New, []byte(g.cfg.Pepper))
	mac.Write([]byte(phone))
	mac.Write([]byte{'|'})
	mac.Write([]byte(code))
	return mac.Sum(nil)
}

// validPhone accepts E.164-style numbers: optional leading +, 10 to 15 digits.
func validPhone(phone string) bool {
	s := phone
	if len(s) > 0 && s[0] == '+' {
		s = s[1:]
	}
	if len(s) < 10 || len(s) > 15 {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// randomCode draws a uniformly random numeric code of the given length from
// crypto/rand, zero-padded.
func randomCode(length int) (string, error) {
	bound := big.NewInt(1)
	for range length {
		bound.Mul(bound, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
