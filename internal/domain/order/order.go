// Package order is the durable ledger of placed orders. An order's items and
// totals are immutable once created; only the two status dimensions and the
// tracking number may change, and only through guarded ledger operations.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/giftkart/storefront/internal/domain/cart"
)

// ErrNotFound is returned when no order matches the given identifier.
var ErrNotFound = errors.New("order not found")

// PaymentMethod is the settlement path chosen at checkout.
type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "cod"
	MethodOnline PaymentMethod = "online"
)

// ParseMethod validates a client-supplied payment method.
func ParseMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case MethodCOD, MethodOnline:
		return PaymentMethod(s), nil
	}
	return "", errors.New("unknown payment method")
}

// Status is the fulfillment lifecycle, independent of payment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// CanTransitionTo reports whether the fulfillment machine permits moving to
// next. Cancellation is reachable only before shipment.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered
	}
	return false
}

// PaymentStatus is the settlement lifecycle. Paid is terminal and never
// regresses.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
)

// CanTransitionTo reports whether the payment machine permits moving to next.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch p {
	case PaymentInitiated:
		return next == PaymentPending || next == PaymentPaid || next == PaymentFailed
	case PaymentPending:
		return next == PaymentPaid || next == PaymentFailed
	}
	return false
}

// IllegalTransitionError reports an attempted transition the state machine
// forbids. These indicate a programming or race error, never user error.
type IllegalTransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s -> %s", e.OrderID, e.From, e.To)
}

// Item is a line item priced at purchase time, decoupled from live catalog
// prices. UnitPrice is in minor currency units.
type Item struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// Address is the shipping destination captured with the order.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

// Order is the persisted record. Items, address, and amounts never change
// after creation.
type Order struct {
	ID             string
	OwnerID        string
	SourceKind     cart.Kind
	Items          []Item
	Address        Address
	Method         PaymentMethod
	ItemsTotal     int64
	DeliveryCharge int64
	TotalAmount    int64
	Status         Status
	PaymentStatus  PaymentStatus
	TrackingNumber string
	GatewayTxnID   string
	IdempotencyKey string
	CreatedAt      time.Time
}

// Repository persists orders.
//
// Create must be idempotent by IdempotencyKey: when a record with the same key
// already exists it returns that record with created=false and writes nothing.
// A successful insert must also clear the originating collection
// (OwnerID, SourceKind) in the same atomic unit; nothing else in the system
// empties a collection.
type Repository interface {
	Create(ctx context.Context, o *Order) (stored *Order, created bool, err error)
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, next Status) error
	UpdatePaymentStatus(ctx context.Context, id string, next PaymentStatus, gatewayTxnID string) error
	UpdateTracking(ctx context.Context, id, trackingNumber string) error
}
