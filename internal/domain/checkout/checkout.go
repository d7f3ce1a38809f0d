// Package checkout orchestrates the collection-to-order transition: it gates
// on phone verification, branches between the cash-on-delivery and online
// settlement paths, and reconciles gateway outcomes into exactly one durable
// order per attempt.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/giftkart/storefront/internal/domain/cart"
	"github.com/giftkart/storefront/internal/domain/order"
)

// Failure taxonomy surfaced to callers.
var (
	ErrPhoneNotVerified = errors.New("phone not verified")
	ErrEmptyCollection  = errors.New("collection is empty")
	// ErrGatewayUnavailable is retriable; nothing was committed.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPaymentFailed is terminal for the attempt; the collection is intact.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrConfirmationPending means the gateway has no verdict yet. No order is
	// created on an ambiguous outcome; the caller polls again.
	ErrConfirmationPending = errors.New("payment confirmation pending")
	// ErrSessionUnknown means the session ref matches no parked attempt: it
	// expired, was never issued, or was already swept.
	ErrSessionUnknown = errors.New("unknown payment session")

	// ErrNoIntent is the IntentStore miss sentinel.
	ErrNoIntent = errors.New("no parked intent")
)

// BelowMinimumError reports a hamper under the configured minimum, with the
// exact amount still missing so the client can self-correct.
type BelowMinimumError struct {
	Shortfall int64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("hamper below minimum value, short by %d", e.Shortfall)
}

// AddressIncompleteError lists the blank required address fields.
type AddressIncompleteError struct {
	Missing []string
}

func (e *AddressIncompleteError) Error() string {
	return "shipping address incomplete: missing " + strings.Join(e.Missing, ", ")
}

// Intent is the ephemeral order-to-be for one checkout attempt. For online
// payments it is parked in the intent store, keyed by the gateway session ref,
// until the gateway delivers a verdict; it never touches the order ledger on
// its own.
type Intent struct {
	OwnerID        string              `json:"ownerId"`
	Kind           cart.Kind           `json:"kind"`
	Phone          string              `json:"phone"`
	Items          []order.Item        `json:"items"`
	Address        order.Address       `json:"address"`
	Method         order.PaymentMethod `json:"method"`
	ItemsTotal     int64               `json:"itemsTotal"`
	DeliveryCharge int64               `json:"deliveryCharge"`
	TotalAmount    int64               `json:"totalAmount"`
	IdempotencyKey string              `json:"idempotencyKey"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// IntentStore parks intents between gateway session creation and
// confirmation. Entries must honor the TTL so an abandoned attempt
// self-expires rather than wedging the owner's collection.
type IntentStore interface {
	Put(ctx context.Context, sessionRef string, in *Intent, ttl time.Duration) error
	Get(ctx context.Context, sessionRef string) (*Intent, error)
	Delete(ctx context.Context, sessionRef string) error
}

// validateAddress returns the blank required fields, if any.
func validateAddress(a order.Address) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", a.Name},
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"phone", a.Phone},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// deriveKey builds a deterministic idempotency key for a checkout attempt.
// The time bucket makes the key stable across immediate retries of the same
// attempt yet distinct across genuinely separate attempts.
func deriveKey(ownerID string, kind cart.Kind, subtotal int64, at time.Time, bucket time.Duration) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%d",
		ownerID, kind, subtotal, at.Truncate(bucket).Unix()))
	return hex.EncodeToString(h[:])
}

// clientKey accepts a caller-supplied idempotency key only if it is a UUID.
func clientKey(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", false
	}
	return s, true
}
