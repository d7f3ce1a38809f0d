package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftkart/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockCatalog struct {
	byID   map[string]*product.Product
	getErr error
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		p, err := m.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockCatalog) List(_ context.Context) ([]product.Product, error) { return nil, nil }

type memRepo struct {
	collections map[string]*Collection
	saveErr     error
}

func newMemRepo() *memRepo {
	return &memRepo{collections: make(map[string]*Collection)}
}

func (m *memRepo) Get(_ context.Context, ownerID string, kind Kind) (*Collection, error) {
	c, ok := m.collections[ownerID+"/"+string(kind)]
	if !ok {
		return NewCollection(ownerID, kind), nil
	}
	clone := NewCollection(ownerID, kind)
	for k, v := range c.Items {
		clone.Items[k] = v
	}
	return clone, nil
}

func (m *memRepo) Save(_ context.Context, c *Collection) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.collections[c.OwnerID+"/"+string(c.Kind)] = c
	return nil
}

// --- Helpers ---

func testConfig() Config {
	return Config{
		MinHamperValue:        35000,
		FreeDeliveryThreshold: 50000,
		DeliveryFee:           4000,
	}
}

func newTestService(products ...product.Product) (*Service, *memRepo) {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	repo := newMemRepo()
	return NewService(&mockCatalog{byID: byID}, repo, testConfig()), repo
}

func available(id string, price int64) product.Product {
	return product.Product{ID: id, Name: id, Category: "test", Price: price, Available: true}
}

// --- Tests ---

func TestAdd_FirstAccessReturnsEmptyThenAdds(t *testing.T) {
	svc, _ := newTestService(available("p1", 1000))
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx, "owner", KindCart)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.Subtotal)

	snap, err = svc.Add(ctx, "owner", KindCart, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), snap.Subtotal)
	assert.Equal(t, 2, snap.ItemCount)
}

func TestAdd_InvalidQuantity(t *testing.T) {
	svc, _ := newTestService(available("p1", 1000))

	_, err := svc.Add(context.Background(), "owner", KindCart, "p1", 0)

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestAdd_ProductUnavailable(t *testing.T) {
	unavailable := product.Product{ID: "p2", Price: 500, Available: false}
	svc, _ := newTestService(unavailable)
	ctx := context.Background()

	for _, id := range []string{"missing", "p2"} {
		_, err := svc.Add(ctx, "owner", KindCart, id, 1)

		var puErr *ProductUnavailableError
		require.ErrorAs(t, err, &puErr)
		assert.Equal(t, id, puErr.ProductID)
	}
}

func TestAdd_CatalogLookupFailureFailsClosed(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(&mockCatalog{getErr: errors.New("catalog timeout")}, repo, testConfig())

	_, err := svc.Add(context.Background(), "owner", KindCart, "p1", 1)

	require.Error(t, err)
	assert.Empty(t, repo.collections)
}

func TestSubtotalInvariant_AcrossMutationSequence(t *testing.T) {
	svc, _ := newTestService(available("p1", 1000), available("p2", 2500), available("p3", 99))
	ctx := context.Background()

	check := func(snap *Snapshot) {
		t.Helper()
		var want int64
		var count int
		for _, it := range snap.Items {
			want += it.UnitPrice * int64(it.Quantity)
			count += it.Quantity
		}
		assert.Equal(t, want, snap.Subtotal)
		assert.Equal(t, count, snap.ItemCount)
	}

	snap, err := svc.Add(ctx, "owner", KindCart, "p1", 3)
	require.NoError(t, err)
	check(snap)

	snap, err = svc.Add(ctx, "owner", KindCart, "p2", 1)
	require.NoError(t, err)
	check(snap)

	snap, err = svc.SetQuantity(ctx, "owner", KindCart, "p1", 1)
	require.NoError(t, err)
	check(snap)
	assert.Equal(t, int64(3500), snap.Subtotal)

	snap, err = svc.Add(ctx, "owner", KindCart, "p3", 7)
	require.NoError(t, err)
	check(snap)

	snap, err = svc.Remove(ctx, "owner", KindCart, "p2")
	require.NoError(t, err)
	check(snap)
	assert.Equal(t, int64(1000+7*99), snap.Subtotal)
}

func TestSetQuantity_ZeroRemovesItem(t *testing.T) {
	svc, _ := newTestService(available("p1", 1000))
	ctx := context.Background()

	_, err := svc.Add(ctx, "owner", KindCart, "p1", 2)
	require.NoError(t, err)

	snap, err := svc.SetQuantity(ctx, "owner", KindCart, "p1", 0)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.Subtotal)
}

func TestRemove_AbsentProductIsNoop(t *testing.T) {
	svc, _ := newTestService(available("p1", 1000))
	ctx := context.Background()

	_, err := svc.Add(ctx, "owner", KindCart, "p1", 1)
	require.NoError(t, err)

	snap, err := svc.Remove(ctx, "owner", KindCart, "p9")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
}

func TestClear_EmptiesCollection(t *testing.T) {
	svc, _ := newTestService(available("p1", 1000), available("p2", 2000))
	ctx := context.Background()

	_, err := svc.Add(ctx, "owner", KindCart, "p1", 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, "owner", KindCart, "p2", 1)
	require.NoError(t, err)

	snap, err := svc.Clear(ctx, "owner", KindCart)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.ItemCount)
}

func TestHamper_ShortfallReported(t *testing.T) {
	svc, _ := newTestService(available("p1", 30000))
	ctx := context.Background()

	snap, err := svc.Add(ctx, "owner", KindHamper, "p1", 1)
	require.NoError(t, err)
	assert.False(t, snap.Valid)
	assert.Equal(t, int64(5000), snap.Shortfall)
}

func TestHamper_ValidAtMinimum(t *testing.T) {
	svc, _ := newTestService(available("p1", 35000))
	ctx := context.Background()

	snap, err := svc.Add(ctx, "owner", KindHamper, "p1", 1)
	require.NoError(t, err)
	assert.True(t, snap.Valid)
	assert.Zero(t, snap.Shortfall)
}

func TestDeliveryCharge_ThresholdRule(t *testing.T) {
	svc, _ := newTestService(available("cheap", 10000), available("rich", 50000))
	ctx := context.Background()

	snap, err := svc.Add(ctx, "owner", KindCart, "cheap", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), snap.DeliveryCharge)

	snap, err = svc.Add(ctx, "owner", KindCart, "rich", 1)
	require.NoError(t, err)
	assert.Zero(t, snap.DeliveryCharge)
}

func TestCollections_IndependentPerKind(t *testing.T) {
	svc, _ := newTestService(available("p1", 1000))
	ctx := context.Background()

	_, err := svc.Add(ctx, "owner", KindCart, "p1", 1)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, "owner", KindHamper)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
}
