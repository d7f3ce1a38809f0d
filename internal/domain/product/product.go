package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a product does not exist in the catalog.
var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. Price is in minor currency units (paise).
type Product struct {
	ID        string
	Name      string
	Category  string
	Price     int64
	Available bool
}

// Repository provides read access to the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context) ([]Product, error)
}
