package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/giftkart/storefront/internal/domain/cart"
	"github.com/giftkart/storefront/internal/domain/order"
	"github.com/giftkart/storefront/internal/domain/product"
	"github.com/giftkart/storefront/internal/domain/verification"
	"github.com/giftkart/storefront/internal/payment"
)

// Config holds the orchestrator's timing knobs.
type Config struct {
	// IntentTTL bounds how long a parked online-payment intent stays
	// confirmable before it self-expires.
	IntentTTL time.Duration
	// KeyBucket is the time bucket for server-derived idempotency keys.
	KeyBucket time.Duration
}

// Request is one checkout attempt.
type Request struct {
	OwnerID           string
	Kind              cart.Kind
	Address           order.Address
	Method            order.PaymentMethod
	VerificationToken string
	// IdempotencyKey is an optional client-supplied UUID. When absent a
	// deterministic key is derived server-side.
	IdempotencyKey string
}

// Result is the outcome of a checkout attempt. For COD, Order is set
// immediately. For online payments, PaymentSessionRef is set and the order
// materializes only on confirmation. DuplicateSuppressed marks a result that
// was resolved from a concurrent or prior identical attempt; it presents the
// same as a fresh success.
type Result struct {
	Order               *order.Order
	PaymentSessionRef   string
	DuplicateSuppressed bool
}

// Orchestrator drives checkout. It trusts the verification token (never the
// raw phone number), takes its own authoritative collection snapshot, and
// serializes checkout per owner so a double-click cannot spend the same items
// twice.
type Orchestrator struct {
	carts   *cart.Service
	catalog product.Repository
	gate    *verification.Gate
	ledger  *order.Ledger
	gateway payment.Gateway
	intents IntentStore
	cfg     Config

	// checkouts admits one in-flight checkout per owner; confirms admits one
	// in-flight confirmation per gateway session. Latecomers share the
	// winner's result.
	checkouts singleflight.Group
	confirms  singleflight.Group

	now func() time.Time
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(
	carts *cart.Service,
	catalog product.Repository,
	gate *verification.Gate,
	ledger *order.Ledger,
	gateway payment.Gateway,
	intents IntentStore,
	cfg Config,
) *Orchestrator {
	if cfg.KeyBucket <= 0 {
		cfg.KeyBucket = 5 * time.Minute
	}
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 30 * time.Minute
	}
	return &Orchestrator{
		carts:   carts,
		catalog: catalog,
		gate:    gate,
		ledger:  ledger,
		gateway: gateway,
		intents: intents,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Checkout validates the attempt and commits it through the chosen settlement
// path. Concurrent calls for the same owner collapse into one: the loser
// receives the winner's result flagged DuplicateSuppressed.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*Result, error) {
	phone, err := o.gate.CheckToken(ctx, req.VerificationToken)
	if err != nil {
		if errors.Is(err, verification.ErrTokenInvalid) {
			return nil, ErrPhoneNotVerified
		}
		return nil, errors.Wrap(err, "check verification token")
	}

	if missing := validateAddress(req.Address); len(missing) > 0 {
		return nil, &AddressIncompleteError{Missing: missing}
	}

	v, err, shared := o.checkouts.Do(req.OwnerID, func() (any, error) {
		return o.checkout(ctx, req, phone)
	})
	if err != nil {
		return nil, err
	}

	res := v.(*Result)
	if shared {
		dup := *res
		dup.DuplicateSuppressed = true
		return &dup, nil
	}
	return res, nil
}

// checkout runs with the per-owner guard held.
func (o *Orchestrator) checkout(ctx context.Context, req Request, phone string) (*Result, error) {
	// A client retrying with the same UUID key after losing the response gets
	// the committed result back even though its collection is already empty.
	if key, ok := clientKey(req.IdempotencyKey); ok {
		existing, err := o.ledger.GetByIdempotencyKey(ctx, key)
		if err == nil {
			return &Result{Order: existing, DuplicateSuppressed: true}, nil
		}
		if !errors.Is(err, order.ErrNotFound) {
			return nil, errors.Wrap(err, "lookup prior attempt")
		}
	}

	snap, err := o.carts.Snapshot(ctx, req.OwnerID, req.Kind)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot collection")
	}
	if snap.ItemCount == 0 {
		return nil, ErrEmptyCollection
	}
	// The collection may have changed since the client last looked; the
	// snapshot taken here is the only one that counts.
	if !snap.Valid {
		return nil, &BelowMinimumError{Shortfall: snap.Shortfall}
	}

	items, err := o.priceAndRevalidate(ctx, snap.Items)
	if err != nil {
		return nil, err
	}

	intent := &Intent{
		OwnerID:        req.OwnerID,
		Kind:           req.Kind,
		Phone:          phone,
		Items:          items,
		Address:        req.Address,
		Method:         req.Method,
		ItemsTotal:     snap.Subtotal,
		DeliveryCharge: snap.DeliveryCharge,
		TotalAmount:    snap.Subtotal + snap.DeliveryCharge,
		CreatedAt:      o.now(),
	}
	if key, ok := clientKey(req.IdempotencyKey); ok {
		intent.IdempotencyKey = key
	} else {
		intent.IdempotencyKey = deriveKey(req.OwnerID, req.Kind, snap.Subtotal, intent.CreatedAt, o.cfg.KeyBucket)
	}

	switch req.Method {
	case order.MethodCOD:
		return o.settleCOD(ctx, intent)
	case order.MethodOnline:
		return o.openSession(ctx, intent)
	}
	return nil, errors.Errorf("unknown payment method %q", req.Method)
}

// settleCOD creates the order immediately; no gateway is involved. The ledger
// create clears the collection atomically and dedupes by idempotency key.
func (o *Orchestrator) settleCOD(ctx context.Context, intent *Intent) (*Result, error) {
	stored, created, err := o.ledger.Create(ctx, orderFromIntent(intent, order.PaymentPending, ""))
	if err != nil {
		return nil, err
	}
	return &Result{Order: stored, DuplicateSuppressed: !created}, nil
}

// openSession asks the gateway for a payment session and parks the intent. No
// order exists until the gateway confirms; an abandoned session simply
// expires with its intent.
func (o *Orchestrator) openSession(ctx context.Context, intent *Intent) (*Result, error) {
	session, err := o.gateway.CreateSession(ctx, intent.TotalAmount, intent.IdempotencyKey)
	if err != nil {
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, ErrGatewayUnavailable
		}
		return nil, errors.Wrap(err, "create payment session")
	}

	if err := o.intents.Put(ctx, session.Ref, intent, o.cfg.IntentTTL); err != nil {
		return nil, errors.Wrap(err, "park intent")
	}

	zctx.From(ctx).Info("payment session opened",
		zap.String("owner_id", intent.OwnerID),
		zap.String("session_ref", session.Ref),
		zap.Int64("amount", intent.TotalAmount),
	)
	return &Result{PaymentSessionRef: session.Ref}, nil
}

// ConfirmPayment resolves an online payment session into its final outcome.
// It is invoked by both the client callback and the gateway webhook; the two
// race by design, so the whole path is idempotent: keyed singleflight
// collapses concurrent confirms, and the ledger's idempotency key guarantees
// at most one order no matter how often either channel fires.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, sessionRef string) (*order.Order, error) {
	v, err, _ := o.confirms.Do(sessionRef, func() (any, error) {
		return o.confirm(ctx, sessionRef)
	})
	if err != nil {
		return nil, err
	}
	return v.(*order.Order), nil
}

func (o *Orchestrator) confirm(ctx context.Context, sessionRef string) (*order.Order, error) {
	intent, err := o.intents.Get(ctx, sessionRef)
	if err != nil {
		if errors.Is(err, ErrNoIntent) {
			return nil, ErrSessionUnknown
		}
		return nil, errors.Wrap(err, "get parked intent")
	}

	// A prior confirmation (either channel) may already have committed.
	existing, err := o.ledger.GetByIdempotencyKey(ctx, intent.IdempotencyKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, order.ErrNotFound) {
		return nil, errors.Wrap(err, "lookup existing order")
	}

	conf, err := o.gateway.Confirm(ctx, sessionRef)
	if err != nil {
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, ErrGatewayUnavailable
		}
		return nil, errors.Wrap(err, "confirm payment session")
	}

	switch conf.Status {
	case payment.StatusPending:
		return nil, ErrConfirmationPending
	case payment.StatusFailed:
		zctx.From(ctx).Info("payment failed",
			zap.String("owner_id", intent.OwnerID),
			zap.String("session_ref", sessionRef),
		)
		return nil, ErrPaymentFailed
	case payment.StatusPaid:
		stored, _, err := o.ledger.Create(ctx, orderFromIntent(intent, order.PaymentPaid, conf.GatewayTxnID))
		if err != nil {
			return nil, err
		}
		return stored, nil
	}
	return nil, errors.Errorf("unexpected gateway status %q", conf.Status)
}

// priceAndRevalidate re-checks catalog availability at checkout time and
// decorates the snapshot items with product names for the order manifest.
// Prices stay as captured at mutation time.
func (o *Orchestrator) priceAndRevalidate(ctx context.Context, items []cart.Item) ([]order.Item, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}

	fetched, err := o.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "re-validate products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	out := make([]order.Item, len(items))
	for i, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || !p.Available {
			return nil, &cart.ProductUnavailableError{ProductID: it.ProductID}
		}
		out[i] = order.Item{
			ProductID: it.ProductID,
			Name:      p.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}
	return out, nil
}

func orderFromIntent(in *Intent, ps order.PaymentStatus, gatewayTxnID string) *order.Order {
	return &order.Order{
		OwnerID:        in.OwnerID,
		SourceKind:     in.Kind,
		Items:          in.Items,
		Address:        in.Address,
		Method:         in.Method,
		ItemsTotal:     in.ItemsTotal,
		DeliveryCharge: in.DeliveryCharge,
		TotalAmount:    in.TotalAmount,
		Status:         order.StatusPending,
		PaymentStatus:  ps,
		GatewayTxnID:   gatewayTxnID,
		IdempotencyKey: in.IdempotencyKey,
	}
}
