package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giftkart/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, owner_id, source_kind, items, address, method,
		 items_total, delivery_charge, total_amount,
		 status, payment_status, gateway_txn_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (idempotency_key) DO NOTHING`

	orderColumns = `id, owner_id, source_kind, items, address, method,
		items_total, delivery_charge, total_amount,
		status, payment_status, tracking_number, gateway_txn_id,
		idempotency_key, created_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByKeySQL = `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`

	listOrdersByOwnerSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE owner_id = $1 ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	updatePaymentStatusSQL = `UPDATE orders SET payment_status = $2,
		gateway_txn_id = COALESCE(NULLIF($3, ''), gateway_txn_id)
		WHERE id = $1`

	updateTrackingSQL = `UPDATE orders SET tracking_number = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items and
// address are serialized to JSONB; they are immutable after insert and never
// queried field-wise.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and clears the originating collection in one
// transaction. The UNIQUE constraint on idempotency_key turns a duplicate
// attempt into a no-op insert; the already-stored order is returned with
// created=false and the collection is left alone.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (*order.Order, bool, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling order address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, insertOrderSQL,
		o.ID, o.OwnerID, string(o.SourceKind), itemsJSON, addressJSON, string(o.Method),
		o.ItemsTotal, o.DeliveryCharge, o.TotalAmount,
		string(o.Status), string(o.PaymentStatus), o.GatewayTxnID, o.IdempotencyKey, o.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if tag.RowsAffected() == 0 {
		existing, err := getOrder(ctx, tx, getOrderByKeySQL, o.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("fetching order for key %q: %w", o.IdempotencyKey, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("committing transaction: %w", err)
		}
		return existing, false, nil
	}

	if _, err := tx.Exec(ctx, deleteCollectionSQL, o.OwnerID, string(o.SourceKind)); err != nil {
		return nil, false, fmt.Errorf("clearing collection %s/%s: %w", o.OwnerID, o.SourceKind, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing transaction: %w", err)
	}
	return o, true, nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.pool, getOrderByIDSQL, id)
}

// GetByIdempotencyKey returns the order created for a checkout attempt, if any.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return getOrder(ctx, r.pool, getOrderByKeySQL, key)
}

// ListByOwner returns the owner's orders, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", ownerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus sets the fulfillment status. Transition legality is the
// ledger's concern; this is a plain write.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, next order.Status) error {
	return r.update(ctx, updateOrderStatusSQL, id, string(next))
}

// UpdatePaymentStatus sets the payment status, recording the gateway
// transaction ID when one is supplied.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, next order.PaymentStatus, gatewayTxnID string) error {
	return r.update(ctx, updatePaymentStatusSQL, id, string(next), gatewayTxnID)
}

// UpdateTracking records the carrier tracking number.
func (r *OrderRepository) UpdateTracking(ctx context.Context, id, trackingNumber string) error {
	return r.update(ctx, updateTrackingSQL, id, trackingNumber)
}

func (r *OrderRepository) update(ctx context.Context, sql, id string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getOrder(ctx context.Context, q querier, sql string, arg any) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		itemsJSON   []byte
		addressJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.OwnerID, &o.SourceKind, &itemsJSON, &addressJSON, &o.Method,
		&o.ItemsTotal, &o.DeliveryCharge, &o.TotalAmount,
		&o.Status, &o.PaymentStatus, &o.TrackingNumber, &o.GatewayTxnID,
		&o.IdempotencyKey, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return o, fmt.Errorf("unmarshaling order address: %w", err)
	}
	return o, nil
}
