package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/giftkart/storefront/internal/domain/product"
	"github.com/giftkart/storefront/pkg/keylock"
)

// Config holds the business thresholds, all in minor currency units. They are
// configuration rather than constants so promotions can adjust them without a
// code change.
type Config struct {
	// MinHamperValue is the smallest hamper subtotal accepted at checkout.
	MinHamperValue int64
	// FreeDeliveryThreshold waives the delivery fee at or above this subtotal.
	FreeDeliveryThreshold int64
	// DeliveryFee applies below the free-delivery threshold.
	DeliveryFee int64
}

// Service owns all collection mutations. Mutations for the same owner and kind
// are serialized by a keyed mutex; different owners proceed in parallel.
//
// Every mutation prices items from the catalog at mutation time, recomputes
// the subtotal server-side, and returns the full authoritative snapshot.
type Service struct {
	catalog product.Repository
	repo    Repository
	locks   *keylock.KeyLock
	cfg     Config
}

// NewService creates a cart Service.
func NewService(catalog product.Repository, repo Repository, cfg Config) *Service {
	return &Service{
		catalog: catalog,
		repo:    repo,
		locks:   keylock.New(),
		cfg:     cfg,
	}
}

func lockKey(ownerID string, kind Kind) string {
	return ownerID + "/" + string(kind)
}

// Add increases the quantity of a product by qty, inserting the item if absent.
// The unit price is refreshed from the catalog on every call.
func (s *Service) Add(ctx context.Context, ownerID string, kind Kind, productID string, qty int) (*Snapshot, error) {
	if qty <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID}
	}

	key := lockKey(ownerID, kind)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	p, err := s.lookupAvailable(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, errors.Wrap(err, "get collection")
	}

	it := c.Items[productID]
	it.ProductID = productID
	it.UnitPrice = p.Price
	it.Quantity += qty
	c.Items[productID] = it

	return s.save(ctx, c)
}

// SetQuantity replaces the quantity of a product. A quantity of zero or less
// removes the item.
func (s *Service) SetQuantity(ctx context.Context, ownerID string, kind Kind, productID string, qty int) (*Snapshot, error) {
	if qty <= 0 {
		return s.Remove(ctx, ownerID, kind, productID)
	}

	key := lockKey(ownerID, kind)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	p, err := s.lookupAvailable(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, errors.Wrap(err, "get collection")
	}

	c.Items[productID] = Item{ProductID: productID, UnitPrice: p.Price, Quantity: qty}

	return s.save(ctx, c)
}

// Remove deletes a product from the collection. Removing an absent product is
// a no-op that still returns the current snapshot.
func (s *Service) Remove(ctx context.Context, ownerID string, kind Kind, productID string) (*Snapshot, error) {
	key := lockKey(ownerID, kind)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	c, err := s.repo.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, errors.Wrap(err, "get collection")
	}

	delete(c.Items, productID)

	return s.save(ctx, c)
}

// Clear empties the collection.
func (s *Service) Clear(ctx context.Context, ownerID string, kind Kind) (*Snapshot, error) {
	key := lockKey(ownerID, kind)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	c, err := s.repo.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, errors.Wrap(err, "get collection")
	}

	c.Items = make(map[string]Item)

	return s.save(ctx, c)
}

// Snapshot returns the current authoritative view without mutating anything.
func (s *Service) Snapshot(ctx context.Context, ownerID string, kind Kind) (*Snapshot, error) {
	c, err := s.repo.Get(ctx, ownerID, kind)
	if err != nil {
		return nil, errors.Wrap(err, "get collection")
	}
	return s.snapshot(c), nil
}

// DeliveryCharge applies the threshold rule to a subtotal.
func (s *Service) DeliveryCharge(subtotal int64) int64 {
	if subtotal >= s.cfg.FreeDeliveryThreshold {
		return 0
	}
	return s.cfg.DeliveryFee
}

// lookupAvailable fetches a product and fails closed: lookup errors and
// unavailable products both block the mutation.
func (s *Service) lookupAvailable(ctx context.Context, productID string) (*product.Product, error) {
	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &ProductUnavailableError{ProductID: productID}
		}
		return nil, errors.Wrapf(err, "lookup product %s", productID)
	}
	if !p.Available {
		return nil, &ProductUnavailableError{ProductID: productID}
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, c *Collection) (*Snapshot, error) {
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save collection")
	}
	return s.snapshot(c), nil
}

// snapshot derives the client-facing view. For hampers it also reports
// checkout validity and the exact shortfall against the configured minimum.
func (s *Service) snapshot(c *Collection) *Snapshot {
	subtotal := c.Subtotal()

	snap := &Snapshot{
		Kind:      c.Kind,
		Items:     sortedItems(c),
		Subtotal:  subtotal,
		ItemCount: c.ItemCount(),
		Valid:     true,
	}
	if len(snap.Items) > 0 {
		snap.DeliveryCharge = s.DeliveryCharge(subtotal)
	}
	if c.Kind == KindHamper && subtotal < s.cfg.MinHamperValue {
		snap.Valid = false
		snap.Shortfall = s.cfg.MinHamperValue - subtotal
	}
	return snap
}
