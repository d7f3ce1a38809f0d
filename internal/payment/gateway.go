// Package payment wraps the external payment gateway. The storefront only
// consumes two operations: creating a payment session for an amount, and
// asking for the authoritative outcome of a session.
package payment

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnavailable indicates the gateway could not be reached or answered with a
// server error; the attempt is retriable.
var ErrUnavailable = errors.New("payment gateway unavailable")

// ConfirmStatus is the gateway's authoritative verdict on a session.
type ConfirmStatus string

const (
	StatusPaid   ConfirmStatus = "paid"
	StatusFailed ConfirmStatus = "failed"
	// StatusPending means the gateway has no verdict yet. Never an order.
	StatusPending ConfirmStatus = "pending"
)

// Session references an in-flight payment attempt at the gateway.
type Session struct {
	Ref    string
	Amount int64
}

// Confirmation is the gateway's settlement result for a session.
type Confirmation struct {
	Status       ConfirmStatus
	GatewayTxnID string
}

// Gateway is the collaborator interface consumed by checkout.
type Gateway interface {
	CreateSession(ctx context.Context, amount int64, idempotencyKey string) (*Session, error)
	Confirm(ctx context.Context, sessionRef string) (*Confirmation, error)
}
