// Package account models the API credentials that front the storefront. Each
// key belongs to one owner, whose collections and orders it may touch.
package account

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no active key matches the given hash.
var ErrNotFound = errors.New("api key not found")

// Well-known scopes.
const (
	// ScopeStorefront grants the customer-facing surface: collections,
	// verification, checkout, and the owner's own orders.
	ScopeStorefront = "storefront"
	// ScopeAdmin additionally grants fulfillment status updates.
	ScopeAdmin = "admin"
)

// APIKey holds the identity and permission data for a validated key. The key
// itself is never stored, only its HMAC-SHA256 hash.
type APIKey struct {
	ID      string
	OwnerID string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries the given scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}
