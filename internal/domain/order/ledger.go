package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger wraps the repository with the transition rules. All post-creation
// mutations flow through it; the customer-facing surface never touches status
// fields directly.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a Ledger over the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Create persists a new order, idempotent by idempotency key. Repeated calls
// with the same key return the already-stored order and created=false. The
// repository clears the originating collection atomically with the insert.
func (l *Ledger) Create(ctx context.Context, o *Order) (*Order, bool, error) {
	if o.IdempotencyKey == "" {
		return nil, false, errors.New("idempotency key required")
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = l.now()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentInitiated
	}

	stored, created, err := l.repo.Create(ctx, o)
	if err != nil {
		return nil, false, errors.Wrap(err, "create order")
	}
	if !created {
		zctx.From(ctx).Info("duplicate order create suppressed",
			zap.String("order_id", stored.ID),
			zap.String("idempotency_key", o.IdempotencyKey),
		)
	}
	return stored, created, nil
}

// AdvanceFulfillment moves an order along the fulfillment machine, rejecting
// illegal transitions. An illegal attempt is a programming or race error and
// is logged loudly even though the caller sees a plain failure.
func (l *Ledger) AdvanceFulfillment(ctx context.Context, orderID string, next Status) error {
	o, err := l.repo.GetByID(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}

	if !o.Status.CanTransitionTo(next) {
		err := &IllegalTransitionError{OrderID: orderID, From: string(o.Status), To: string(next)}
		zctx.From(ctx).Error("illegal fulfillment transition",
			zap.String("order_id", orderID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(next)),
		)
		return err
	}

	if err := l.repo.UpdateStatus(ctx, orderID, next); err != nil {
		return errors.Wrap(err, "update status")
	}
	return nil
}

// SetPaymentStatus moves an order along the payment machine. Paid never
// regresses; an attempt to leave it is rejected and logged.
func (l *Ledger) SetPaymentStatus(ctx context.Context, orderID string, next PaymentStatus, gatewayTxnID string) error {
	o, err := l.repo.GetByID(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "get order")
	}

	if !o.PaymentStatus.CanTransitionTo(next) {
		err := &IllegalTransitionError{OrderID: orderID, From: string(o.PaymentStatus), To: string(next)}
		zctx.From(ctx).Error("illegal payment transition",
			zap.String("order_id", orderID),
			zap.String("from", string(o.PaymentStatus)),
			zap.String("to", string(next)),
		)
		return err
	}

	if err := l.repo.UpdatePaymentStatus(ctx, orderID, next, gatewayTxnID); err != nil {
		return errors.Wrap(err, "update payment status")
	}
	return nil
}

// SetTracking records the carrier tracking number.
func (l *Ledger) SetTracking(ctx context.Context, orderID, trackingNumber string) error {
	if err := l.repo.UpdateTracking(ctx, orderID, trackingNumber); err != nil {
		return errors.Wrap(err, "update tracking")
	}
	return nil
}

// GetByID fetches a single order.
func (l *Ledger) GetByID(ctx context.Context, orderID string) (*Order, error) {
	return l.repo.GetByID(ctx, orderID)
}

// GetByIdempotencyKey fetches the order created for a checkout attempt, if any.
func (l *Ledger) GetByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	return l.repo.GetByIdempotencyKey(ctx, key)
}

// ListByOwner returns the owner's orders, newest first.
func (l *Ledger) ListByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	return l.repo.ListByOwner(ctx, ownerID)
}
