package checkout

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftkart/storefront/internal/domain/cart"
	"github.com/giftkart/storefront/internal/domain/order"
	"github.com/giftkart/storefront/internal/domain/product"
	"github.com/giftkart/storefront/internal/domain/verification"
	"github.com/giftkart/storefront/internal/payment"
)

const (
	testOwner = "acct_01"
	testPhone = "+919876543210"
)

func testAddress() order.Address {
	return order.Address{
		Name:       "Asha Rao",
		Line1:      "14 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
		Phone:      testPhone,
	}
}

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]product.Product
}

func (c *stubCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (c *stubCatalog) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *stubCatalog) List(_ context.Context) ([]product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]product.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	return out, nil
}

func (c *stubCatalog) setAvailable(id string, available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.Available = available
	c.products[id] = p
}

type memCartRepo struct {
	mu    sync.Mutex
	byKey map[string]*cart.Collection
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{byKey: make(map[string]*cart.Collection)}
}

func cartKey(ownerID string, kind cart.Kind) string {
	return ownerID + "/" + string(kind)
}

func cloneCollection(c *cart.Collection) *cart.Collection {
	out := cart.NewCollection(c.OwnerID, c.Kind)
	for id, it := range c.Items {
		out.Items[id] = it
	}
	return out
}

func (r *memCartRepo) Get(_ context.Context, ownerID string, kind cart.Kind) (*cart.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byKey[cartKey(ownerID, kind)]; ok {
		return cloneCollection(c), nil
	}
	return cart.NewCollection(ownerID, kind), nil
}

func (r *memCartRepo) Save(_ context.Context, c *cart.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[cartKey(c.OwnerID, c.Kind)] = cloneCollection(c)
	return nil
}

func (r *memCartRepo) drop(ownerID string, kind cart.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, cartKey(ownerID, kind))
}

type memVerifStore struct {
	mu       sync.Mutex
	sessions map[string]verification.Session
	tokens   map[string]string
}

func newMemVerifStore() *memVerifStore {
	return &memVerifStore{
		sessions: make(map[string]verification.Session),
		tokens:   make(map[string]string),
	}
}

func (s *memVerifStore) PutSession(_ context.Context, sess *verification.Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Phone] = *sess
	return nil
}

func (s *memVerifStore) GetSession(_ context.Context, phone string) (*verification.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[phone]
	if !ok {
		return nil, verification.ErrNoSession
	}
	return &sess, nil
}

func (s *memVerifStore) DeleteSession(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, phone)
	return nil
}

func (s *memVerifStore) PutToken(_ context.Context, token, phone string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = phone
	return nil
}

func (s *memVerifStore) GetToken(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	phone, ok := s.tokens[token]
	if !ok {
		return "", verification.ErrNoToken
	}
	return phone, nil
}

// captureDispatcher records the last SMS so tests can fish the code out of it.
type captureDispatcher struct {
	mu   sync.Mutex
	last string
}

func (d *captureDispatcher) Send(_ context.Context, _, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = message
	return nil
}

func (d *captureDispatcher) lastCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	fields := strings.Fields(d.last)
	return strings.TrimSuffix(fields[4], ".")
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*order.Order
	byKey  map[string]string

	// clear mimics the transactional collection wipe of the real repository.
	clear func(ownerID string, kind cart.Kind)

	// When block is set, Create signals started and then waits on block, so a
	// test can hold an insert open while racing a second checkout against it.
	block   chan struct{}
	started chan struct{}
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders: make(map[string]*order.Order),
		byKey:  make(map[string]string),
	}
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	return &cp
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) (*order.Order, bool, error) {
	if r.block != nil {
		r.started <- struct{}{}
		<-r.block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byKey[o.IdempotencyKey]; ok {
		return cloneOrder(r.orders[id]), false, nil
	}
	r.orders[o.ID] = cloneOrder(o)
	r.byKey[o.IdempotencyKey] = o.ID
	if r.clear != nil {
		r.clear(o.OwnerID, o.SourceKind)
	}
	return cloneOrder(o), true, nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *memOrderRepo) GetByIdempotencyKey(_ context.Context, key string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(r.orders[id]), nil
}

func (r *memOrderRepo) ListByOwner(_ context.Context, ownerID string) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.OwnerID == ownerID {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id string, next order.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = next
	return nil
}

func (r *memOrderRepo) UpdatePaymentStatus(_ context.Context, id string, next order.PaymentStatus, txnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.PaymentStatus = next
	if txnID != "" {
		o.GatewayTxnID = txnID
	}
	return nil
}

func (r *memOrderRepo) UpdateTracking(_ context.Context, id, trackingNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.TrackingNumber = trackingNumber
	return nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type memIntentStore struct {
	mu    sync.Mutex
	byRef map[string]Intent
}

func newMemIntentStore() *memIntentStore {
	return &memIntentStore{byRef: make(map[string]Intent)}
}

func (s *memIntentStore) Put(_ context.Context, ref string, in *Intent, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRef[ref] = *in
	return nil
}

func (s *memIntentStore) Get(_ context.Context, ref string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.byRef[ref]
	if !ok {
		return nil, ErrNoIntent
	}
	return &in, nil
}

func (s *memIntentStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byRef, ref)
	return nil
}

type stubGateway struct {
	mu            sync.Mutex
	createErr     error
	confirmErr    error
	confirmStatus payment.ConfirmStatus
	confirmTxn    string
	createCalls   int
	confirmCalls  int
}

func (g *stubGateway) CreateSession(_ context.Context, amount int64, _ string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.createCalls++
	return &payment.Session{Ref: "sess_1", Amount: amount}, nil
}

func (g *stubGateway) Confirm(_ context.Context, _ string) (*payment.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	g.confirmCalls++
	return &payment.Confirmation{Status: g.confirmStatus, GatewayTxnID: g.confirmTxn}, nil
}

type fixture struct {
	catalog  *stubCatalog
	cartRepo *memCartRepo
	carts    *cart.Service
	sms      *captureDispatcher
	gate     *verification.Gate
	orders   *memOrderRepo
	gateway  *stubGateway
	intents  *memIntentStore
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := &stubCatalog{products: map[string]product.Product{
		"gift-box":   {ID: "gift-box", Name: "Deluxe Gift Box", Category: "hampers", Price: 30000, Available: true},
		"candle-set": {ID: "candle-set", Name: "Scented Candle Set", Category: "decor", Price: 6000, Available: true},
		"mug":        {ID: "mug", Name: "Ceramic Mug", Category: "kitchen", Price: 9000, Available: true},
	}}
	cartRepo := newMemCartRepo()
	carts := cart.NewService(catalog, cartRepo, cart.Config{
		MinHamperValue:        35000,
		FreeDeliveryThreshold: 50000,
		DeliveryFee:           4000,
	})

	dispatcher := &captureDispatcher{}
	gate := verification.NewGate(newMemVerifStore(), dispatcher, verification.Config{
		CodeLength:     4,
		CodeTTL:        5 * time.Minute,
		ResendCooldown: 30 * time.Second,
		ResendMax:      5 * time.Minute,
		MaxAttempts:    3,
		TokenTTL:       10 * time.Minute,
		Pepper:         "test-pepper",
	})

	orders := newMemOrderRepo()
	orders.clear = cartRepo.drop
	gateway := &stubGateway{confirmStatus: payment.StatusPaid, confirmTxn: "txn_1"}
	intents := newMemIntentStore()

	return &fixture{
		catalog:  catalog,
		cartRepo: cartRepo,
		carts:    carts,
		sms:      dispatcher,
		gate:     gate,
		orders:   orders,
		gateway:  gateway,
		intents:  intents,
		orch:     NewOrchestrator(carts, catalog, gate, order.NewLedger(orders), gateway, intents, Config{}),
	}
}

func (f *fixture) verifiedToken(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	_, err := f.gate.SendCode(ctx, testPhone)
	require.NoError(t, err)
	res, err := f.gate.VerifyCode(ctx, testPhone, f.sms.lastCode())
	require.NoError(t, err)
	return res.Token
}

func (f *fixture) add(t *testing.T, kind cart.Kind, productID string, qty int) {
	t.Helper()
	_, err := f.carts.Add(context.Background(), testOwner, kind, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) request(token string, kind cart.Kind, method order.PaymentMethod) Request {
	return Request{
		OwnerID:           testOwner,
		Kind:              kind,
		Address:           testAddress(),
		Method:            method,
		VerificationToken: token,
	}
}

func TestCheckout_RequiresVerifiedPhone(t *testing.T) {
	f := newFixture(t)
	f.add(t, cart.KindCart, "mug", 1)

	_, err := f.orch.Checkout(context.Background(), f.request("bogus-token", cart.KindCart, order.MethodCOD))
	assert.ErrorIs(t, err, ErrPhoneNotVerified)
	assert.Zero(t, f.orders.count())
}

func TestCheckout_AddressIncomplete(t *testing.T) {
	f := newFixture(t)
	f.add(t, cart.KindCart, "mug", 1)

	req := f.request(f.verifiedToken(t), cart.KindCart, order.MethodCOD)
	req.Address.City = ""
	req.Address.PostalCode = " "

	_, err := f.orch.Checkout(context.Background(), req)
	var incomplete *AddressIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"city", "postalCode"}, incomplete.Missing)
}

func TestCheckout_EmptyCollection(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Checkout(context.Background(), f.request(f.verifiedToken(t), cart.KindCart, order.MethodCOD))
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestCheckout_HamperBelowMinimum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)

	// 30000 against a 35000 minimum: rejected with the exact shortfall.
	f.add(t, cart.KindHamper, "gift-box", 1)
	_, err := f.orch.Checkout(ctx, f.request(token, cart.KindHamper, order.MethodCOD))
	var below *BelowMinimumError
	require.ErrorAs(t, err, &below)
	assert.Equal(t, int64(5000), below.Shortfall)

	// Topping up past the minimum makes the same attempt succeed.
	f.add(t, cart.KindHamper, "candle-set", 1)
	res, err := f.orch.Checkout(ctx, f.request(token, cart.KindHamper, order.MethodCOD))
	require.NoError(t, err)

	o := res.Order
	require.NotNil(t, o)
	assert.Equal(t, cart.KindHamper, o.SourceKind)
	assert.Equal(t, int64(36000), o.ItemsTotal)
	assert.Equal(t, int64(4000), o.DeliveryCharge)
	assert.Equal(t, int64(40000), o.TotalAmount)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)

	snap, err := f.carts.Snapshot(ctx, testOwner, cart.KindHamper)
	require.NoError(t, err)
	assert.Zero(t, snap.ItemCount)
}

func TestCheckout_CODClearsCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 2)

	res, err := f.orch.Checkout(ctx, f.request(token, cart.KindCart, order.MethodCOD))
	require.NoError(t, err)
	assert.False(t, res.DuplicateSuppressed)
	assert.Equal(t, order.MethodCOD, res.Order.Method)
	assert.Equal(t, int64(18000), res.Order.ItemsTotal)
	assert.Equal(t, "Ceramic Mug", res.Order.Items[0].Name)

	snap, err := f.carts.Snapshot(ctx, testOwner, cart.KindCart)
	require.NoError(t, err)
	assert.Zero(t, snap.ItemCount)

	// The collection was consumed; a blind retry has nothing to check out.
	_, err = f.orch.Checkout(ctx, f.request(token, cart.KindCart, order.MethodCOD))
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestCheckout_FreeDeliveryAboveThreshold(t *testing.T) {
	f := newFixture(t)
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "gift-box", 1)
	f.add(t, cart.KindCart, "candle-set", 1)
	f.add(t, cart.KindCart, "mug", 2)

	res, err := f.orch.Checkout(context.Background(), f.request(token, cart.KindCart, order.MethodCOD))
	require.NoError(t, err)
	assert.Equal(t, int64(54000), res.Order.ItemsTotal)
	assert.Zero(t, res.Order.DeliveryCharge)
	assert.Equal(t, int64(54000), res.Order.TotalAmount)
}

func TestCheckout_ClientKeyReplayReturnsSameOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 1)

	req := f.request(token, cart.KindCart, order.MethodCOD)
	req.IdempotencyKey = uuid.New().String()

	first, err := f.orch.Checkout(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.DuplicateSuppressed)

	// Retrying after a lost response returns the committed order even though
	// the collection is already empty.
	second, err := f.orch.Checkout(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.DuplicateSuppressed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, f.orders.count())
}

func TestCheckout_ProductUnavailableAtCheckout(t *testing.T) {
	f := newFixture(t)
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 1)
	f.catalog.setAvailable("mug", false)

	_, err := f.orch.Checkout(context.Background(), f.request(token, cart.KindCart, order.MethodCOD))
	var unavailable *cart.ProductUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "mug", unavailable.ProductID)
	assert.Zero(t, f.orders.count())
}

func TestCheckout_GatewayDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 1)
	f.gateway.createErr = payment.ErrUnavailable

	_, err := f.orch.Checkout(ctx, f.request(token, cart.KindCart, order.MethodOnline))
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	// Nothing committed: the collection survives for a retry.
	snap, err := f.carts.Snapshot(ctx, testOwner, cart.KindCart)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ItemCount)
	assert.Zero(t, f.orders.count())
}

func TestOnline_SessionThenConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 2)

	res, err := f.orch.Checkout(ctx, f.request(token, cart.KindCart, order.MethodOnline))
	require.NoError(t, err)
	assert.Equal(t, "sess_1", res.PaymentSessionRef)
	assert.Nil(t, res.Order)

	// No order and no cleared collection until the gateway confirms.
	assert.Zero(t, f.orders.count())
	snap, err := f.carts.Snapshot(ctx, testOwner, cart.KindCart)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ItemCount)

	// The webhook alone is enough to materialize the order.
	f.gateway.confirmTxn = "txn_9"
	o, err := f.orch.ConfirmPayment(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "txn_9", o.GatewayTxnID)
	assert.Equal(t, int64(18000), o.ItemsTotal)
	assert.Equal(t, int64(22000), o.TotalAmount)

	snap, err = f.carts.Snapshot(ctx, testOwner, cart.KindCart)
	require.NoError(t, err)
	assert.Zero(t, snap.ItemCount)
}

func TestOnline_DoubleConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 1)

	res, err := f.orch.Checkout(ctx, f.request(token, cart.KindCart, order.MethodOnline))
	require.NoError(t, err)

	first, err := f.orch.ConfirmPayment(ctx, res.PaymentSessionRef)
	require.NoError(t, err)

	// Client callback and webhook both fire; the second resolves from the
	// ledger without another gateway round trip.
	second, err := f.orch.ConfirmPayment(ctx, res.PaymentSessionRef)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.orders.count())
	assert.Equal(t, 1, f.gateway.confirmCalls)
}

func TestOnline_ConfirmPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 1)
	f.gateway.confirmStatus = payment.StatusPending

	res, err := f.orch.Checkout(ctx, f.request(token, cart.KindCart, order.MethodOnline))
	require.NoError(t, err)

	_, err = f.orch.ConfirmPayment(ctx, res.PaymentSessionRef)
	assert.ErrorIs(t, err, ErrConfirmationPending)
	assert.Zero(t, f.orders.count())
}

func TestOnline_ConfirmFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 1)
	f.gateway.confirmStatus = payment.StatusFailed

	res, err := f.orch.Checkout(ctx, f.request(token, cart.KindCart, order.MethodOnline))
	require.NoError(t, err)

	_, err = f.orch.ConfirmPayment(ctx, res.PaymentSessionRef)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Zero(t, f.orders.count())

	// A failed payment leaves the collection intact for another attempt.
	snap, err := f.carts.Snapshot(ctx, testOwner, cart.KindCart)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ItemCount)
}

func TestOnline_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.ConfirmPayment(context.Background(), "sess_unknown")
	assert.ErrorIs(t, err, ErrSessionUnknown)
}

func TestCheckout_ConcurrentAttemptsCollapse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.verifiedToken(t)
	f.add(t, cart.KindCart, "mug", 1)

	f.orders.block = make(chan struct{})
	f.orders.started = make(chan struct{}, 1)

	req := f.request(token, cart.KindCart, order.MethodCOD)
	results := make([]*Result, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.orch.Checkout(ctx, req)
	}()

	// Hold the first insert open, then race a second attempt against it.
	<-f.orders.started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = f.orch.Checkout(ctx, req)
	}()
	time.Sleep(50 * time.Millisecond)
	close(f.orders.block)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, f.orders.count())
	assert.Equal(t, results[0].Order.ID, results[1].Order.ID)

	suppressed := 0
	for _, r := range results {
		if r.DuplicateSuppressed {
			suppressed++
		}
	}
	assert.Equal(t, 1, suppressed)
}

func TestDeriveKey_StableWithinBucket(t *testing.T) {
	base := time.Date(2026, 1, 2, 10, 2, 0, 0, time.UTC)

	k1 := deriveKey("acct_01", cart.KindCart, 18000, base, 5*time.Minute)
	k2 := deriveKey("acct_01", cart.KindCart, 18000, base.Add(time.Minute), 5*time.Minute)
	assert.Equal(t, k1, k2)

	k3 := deriveKey("acct_01", cart.KindCart, 18000, base.Add(5*time.Minute), 5*time.Minute)
	assert.NotEqual(t, k1, k3)

	k4 := deriveKey("acct_01", cart.KindHamper, 18000, base, 5*time.Minute)
	assert.NotEqual(t, k1, k4)
}
