package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giftkart/storefront/internal/domain/cart"
)

const (
	getCollectionSQL = `SELECT product_id, unit_price, quantity
		FROM collection_items WHERE owner_id = $1 AND kind = $2`

	deleteCollectionSQL = `DELETE FROM collection_items
		WHERE owner_id = $1 AND kind = $2`

	insertCollectionItemSQL = `INSERT INTO collection_items
		(owner_id, kind, product_id, unit_price, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get loads the collection rows for an owner and kind. An owner with no rows
// gets an empty collection, not an error.
func (r *CartRepository) Get(ctx context.Context, ownerID string, kind cart.Kind) (*cart.Collection, error) {
	rows, err := r.pool.Query(ctx, getCollectionSQL, ownerID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("getting collection %s/%s: %w", ownerID, kind, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ProductID, &it.UnitPrice, &it.Quantity)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning collection %s/%s: %w", ownerID, kind, err)
	}

	c := cart.NewCollection(ownerID, kind)
	for _, it := range items {
		c.Items[it.ProductID] = it
	}
	return c, nil
}

// Save replaces the stored rows with the collection's current items in one
// transaction. The mutation service serializes writers per (owner, kind), so
// delete-then-insert cannot interleave with itself.
func (r *CartRepository) Save(ctx context.Context, c *cart.Collection) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, deleteCollectionSQL, c.OwnerID, string(c.Kind)); err != nil {
		return fmt.Errorf("clearing collection %s/%s: %w", c.OwnerID, c.Kind, err)
	}

	for _, it := range c.Items {
		_, err := tx.Exec(ctx, insertCollectionItemSQL,
			c.OwnerID, string(c.Kind), it.ProductID, it.UnitPrice, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("inserting item %q: %w", it.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing collection %s/%s: %w", c.OwnerID, c.Kind, err)
	}
	return nil
}
