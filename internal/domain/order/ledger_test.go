package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftkart/storefront/internal/domain/cart"
)

// --- Mock implementation ---

// memOrderRepo mimics the postgres repository's idempotency contract: a
// second Create with the same key returns the stored order unchanged.
type memOrderRepo struct {
	byID    map[string]*Order
	byKey   map[string]*Order
	cleared []string // "owner/kind" collections cleared by Create
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		byID:  make(map[string]*Order),
		byKey: make(map[string]*Order),
	}
}

func (m *memOrderRepo) Create(_ context.Context, o *Order) (*Order, bool, error) {
	if existing, ok := m.byKey[o.IdempotencyKey]; ok {
		return existing, false, nil
	}
	clone := *o
	m.byID[o.ID] = &clone
	m.byKey[o.IdempotencyKey] = &clone
	m.cleared = append(m.cleared, o.OwnerID+"/"+string(o.SourceKind))
	return &clone, true, nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (m *memOrderRepo) GetByIdempotencyKey(_ context.Context, key string) (*Order, error) {
	o, ok := m.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (m *memOrderRepo) ListByOwner(_ context.Context, ownerID string) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.OwnerID == ownerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, id string, next Status) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = next
	return nil
}

func (m *memOrderRepo) UpdatePaymentStatus(_ context.Context, id string, next PaymentStatus, txnID string) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = next
	if txnID != "" {
		o.GatewayTxnID = txnID
	}
	return nil
}

func (m *memOrderRepo) UpdateTracking(_ context.Context, id, tn string) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.TrackingNumber = tn
	return nil
}

// --- Helpers ---

func testOrder(key string) *Order {
	return &Order{
		OwnerID:    "owner-1",
		SourceKind: cart.KindHamper,
		Items: []Item{
			{ProductID: "p1", UnitPrice: 20000, Quantity: 1},
			{ProductID: "p2", UnitPrice: 8000, Quantity: 2},
		},
		Method:         MethodCOD,
		ItemsTotal:     36000,
		DeliveryCharge: 4000,
		TotalAmount:    40000,
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
		IdempotencyKey: key,
	}
}

// --- Tests ---

func TestLedgerCreate_AssignsIDAndTimestamps(t *testing.T) {
	repo := newMemOrderRepo()
	l := NewLedger(repo)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	o, created, err := l.Create(context.Background(), testOrder("key-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, now, o.CreatedAt)
	assert.Equal(t, []string{"owner-1/hamper"}, repo.cleared)
}

func TestLedgerCreate_IdempotentByKey(t *testing.T) {
	repo := newMemOrderRepo()
	l := NewLedger(repo)
	ctx := context.Background()

	first, created, err := l.Create(ctx, testOrder("key-1"))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := l.Create(ctx, testOrder("key-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.cleared, 1, "collection cleared exactly once")
}

func TestLedgerCreate_RequiresKey(t *testing.T) {
	l := NewLedger(newMemOrderRepo())

	o := testOrder("")
	_, _, err := l.Create(context.Background(), o)
	require.Error(t, err)
}

func TestAdvanceFulfillment_HappyPath(t *testing.T) {
	repo := newMemOrderRepo()
	l := NewLedger(repo)
	ctx := context.Background()

	o, _, err := l.Create(ctx, testOrder("key-1"))
	require.NoError(t, err)

	for _, next := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		require.NoError(t, l.AdvanceFulfillment(ctx, o.ID, next))
	}

	got, err := l.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
}

func TestAdvanceFulfillment_CannotCancelShipped(t *testing.T) {
	repo := newMemOrderRepo()
	l := NewLedger(repo)
	ctx := context.Background()

	o, _, err := l.Create(ctx, testOrder("key-1"))
	require.NoError(t, err)
	require.NoError(t, l.AdvanceFulfillment(ctx, o.ID, StatusProcessing))
	require.NoError(t, l.AdvanceFulfillment(ctx, o.ID, StatusShipped))

	err = l.AdvanceFulfillment(ctx, o.ID, StatusCancelled)
	var itErr *IllegalTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, "shipped", itErr.From)

	got, err := l.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status, "status unchanged after rejected transition")
}

func TestSetPaymentStatus_PaidNeverRegresses(t *testing.T) {
	repo := newMemOrderRepo()
	l := NewLedger(repo)
	ctx := context.Background()

	o, _, err := l.Create(ctx, testOrder("key-1"))
	require.NoError(t, err)
	require.NoError(t, l.SetPaymentStatus(ctx, o.ID, PaymentPaid, "txn-9"))

	err = l.SetPaymentStatus(ctx, o.ID, PaymentFailed, "")
	var itErr *IllegalTransitionError
	require.ErrorAs(t, err, &itErr)

	got, err := l.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Equal(t, "txn-9", got.GatewayTxnID)
}

func TestSetTracking(t *testing.T) {
	repo := newMemOrderRepo()
	l := NewLedger(repo)
	ctx := context.Background()

	o, _, err := l.Create(ctx, testOrder("key-1"))
	require.NoError(t, err)
	require.NoError(t, l.SetTracking(ctx, o.ID, "AWB123456"))

	got, err := l.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "AWB123456", got.TrackingNumber)
}
