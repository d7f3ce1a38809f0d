// Package cart implements the server-authoritative sellable collections: the
// ordinary shopping cart and the hamper, a user-assembled gift bundle with a
// minimum subtotal requirement.
package cart

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-faster/errors"
)

// Kind distinguishes the two collection variants.
type Kind string

const (
	KindCart   Kind = "cart"
	KindHamper Kind = "hamper"
)

// ErrUnknownKind is returned for a kind string that is neither cart nor hamper.
var ErrUnknownKind = errors.New("unknown collection kind")

// ParseKind validates a client-supplied kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCart, KindHamper:
		return Kind(s), nil
	}
	return "", ErrUnknownKind
}

// Item is a single (product, quantity) pair. UnitPrice is the catalog price in
// minor currency units captured at mutation time.
type Item struct {
	ProductID string `json:"productId"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// Collection is the mutable server-side state for one owner and kind.
// Subtotal and ItemCount are always derived from Items, never stored.
type Collection struct {
	OwnerID string
	Kind    Kind
	Items   map[string]Item
}

// NewCollection returns an empty collection for the given owner and kind.
func NewCollection(ownerID string, kind Kind) *Collection {
	return &Collection{
		OwnerID: ownerID,
		Kind:    kind,
		Items:   make(map[string]Item),
	}
}

// Subtotal is the sum of unit price times quantity over all items.
func (c *Collection) Subtotal() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}

// ItemCount is the total number of units across all items.
func (c *Collection) ItemCount() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Snapshot is the authoritative view returned after every mutation. Clients
// must reconcile against it rather than applying local deltas.
type Snapshot struct {
	Kind           Kind   `json:"kind"`
	Items          []Item `json:"items"`
	Subtotal       int64  `json:"subtotal"`
	ItemCount      int    `json:"itemCount"`
	DeliveryCharge int64  `json:"deliveryCharge"`
	Valid          bool   `json:"valid"`
	Shortfall      int64  `json:"shortfall,omitempty"`
}

// Repository persists collections. Get returns an empty collection (not an
// error) when the owner has no prior state for the kind.
type Repository interface {
	Get(ctx context.Context, ownerID string, kind Kind) (*Collection, error)
	Save(ctx context.Context, c *Collection) error
}

// ProductUnavailableError indicates the product is missing from the catalog or
// flagged unavailable at mutation time.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is unavailable", e.ProductID)
}

// InvalidQuantityError indicates a non-positive quantity where one is required.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// sortedItems returns the collection items ordered by product ID for stable
// snapshots and order manifests.
func sortedItems(c *Collection) []Item {
	items := make([]Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}
