// Package client is a Go SDK for the storefront API. Plain request helpers
// cover the whole surface; Editor adds the optimistic quantity-edit pattern
// on top, coalescing rapid local edits into one server call per item and
// reconciling local state against the authoritative snapshot.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
)

// Collection kinds accepted by the API.
const (
	KindCart   = "cart"
	KindHamper = "hamper"
)

// Payment methods accepted by the API.
const (
	MethodCOD    = "cod"
	MethodOnline = "online"
)

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (http %d)", e.Message, e.Status)
}

type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
	Available bool   `json:"available"`
}

type Item struct {
	ProductID string `json:"productId"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// Snapshot is the server's authoritative view of a collection. Every
// mutation returns one; local optimistic state must yield to it.
type Snapshot struct {
	Kind           string `json:"kind"`
	Items          []Item `json:"items"`
	Subtotal       int64  `json:"subtotal"`
	ItemCount      int    `json:"itemCount"`
	DeliveryCharge int64  `json:"deliveryCharge"`
	Valid          bool   `json:"valid"`
	Shortfall      int64  `json:"shortfall,omitempty"`
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	ID             string      `json:"id"`
	SourceKind     string      `json:"sourceKind"`
	Items          []OrderItem `json:"items"`
	Address        Address     `json:"address"`
	Method         string      `json:"method"`
	ItemsTotal     int64       `json:"itemsTotal"`
	DeliveryCharge int64       `json:"deliveryCharge"`
	TotalAmount    int64       `json:"totalAmount"`
	Status         string      `json:"status"`
	PaymentStatus  string      `json:"paymentStatus"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Challenge reports a sent or resent verification code.
type Challenge struct {
	CooldownSeconds int       `json:"cooldownSeconds"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Token is a proof of phone ownership to present at checkout.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CheckoutRequest struct {
	Kind              string  `json:"kind"`
	Method            string  `json:"method"`
	Address           Address `json:"address"`
	VerificationToken string  `json:"verificationToken"`
	IdempotencyKey    string  `json:"idempotencyKey,omitempty"`
}

// CheckoutResult carries either the created order (cash on delivery) or the
// payment session to complete (online).
type CheckoutResult struct {
	Order               *Order `json:"order,omitempty"`
	PaymentSessionRef   string `json:"paymentSessionRef,omitempty"`
	DuplicateSuppressed bool   `json:"duplicateSuppressed,omitempty"`
}

// Client talks to one storefront API deployment on behalf of one API key.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Products lists the catalog.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	return out, c.do(ctx, http.MethodGet, "/api/products", nil, &out)
}

// Collection fetches the current snapshot without mutating anything.
func (c *Client) Collection(ctx context.Context, kind string) (*Snapshot, error) {
	var out Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/collections/"+kind, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type mutation struct {
	Action    string `json:"action"`
	ProductID string `json:"productId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

func (c *Client) mutate(ctx context.Context, kind string, m mutation) (*Snapshot, error) {
	var out Snapshot
	if err := c.do(ctx, http.MethodPost, "/api/collections/"+kind+"/items", m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Add increases a product's quantity in the collection.
func (c *Client) Add(ctx context.Context, kind, productID string, qty int) (*Snapshot, error) {
	return c.mutate(ctx, kind, mutation{Action: "add", ProductID: productID, Quantity: qty})
}

// SetQuantity pins a product's quantity; zero removes the line.
func (c *Client) SetQuantity(ctx context.Context, kind, productID string, qty int) (*Snapshot, error) {
	return c.mutate(ctx, kind, mutation{Action: "set", ProductID: productID, Quantity: qty})
}

// Remove drops a product from the collection.
func (c *Client) Remove(ctx context.Context, kind, productID string) (*Snapshot, error) {
	return c.mutate(ctx, kind, mutation{Action: "remove", ProductID: productID})
}

// Clear empties the collection.
func (c *Client) Clear(ctx context.Context, kind string) (*Snapshot, error) {
	return c.mutate(ctx, kind, mutation{Action: "clear"})
}

type phoneBody struct {
	Phone string `json:"phone"`
	Code  string `json:"code,omitempty"`
}

// SendCode starts phone verification.
func (c *Client) SendCode(ctx context.Context, phone string) (*Challenge, error) {
	var out Challenge
	if err := c.do(ctx, http.MethodPost, "/api/verification/send", phoneBody{Phone: phone}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendCode requests another code, subject to the server's cooldown.
func (c *Client) ResendCode(ctx context.Context, phone string) (*Challenge, error) {
	var out Challenge
	if err := c.do(ctx, http.MethodPost, "/api/verification/resend", phoneBody{Phone: phone}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCode exchanges a received code for a verification token.
func (c *Client) VerifyCode(ctx context.Context, phone, code string) (*Token, error) {
	var out Token
	if err := c.do(ctx, http.MethodPost, "/api/verification/verify", phoneBody{Phone: phone, Code: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Checkout runs one checkout attempt.
func (c *Client) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	var out CheckoutResult
	if err := c.do(ctx, http.MethodPost, "/api/checkout", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ErrPaymentPending is returned by ConfirmPayment while the gateway has not
// settled the session yet; poll again later.
var ErrPaymentPending = errors.New("payment pending")

// ConfirmPayment completes an online checkout after the gateway redirect.
func (c *Client) ConfirmPayment(ctx context.Context, sessionRef string) (*Order, error) {
	body := struct {
		SessionRef string `json:"sessionRef"`
	}{SessionRef: sessionRef}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/checkout/confirm", body)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "confirm payment")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var out Order
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, errors.Wrap(err, "decode order")
		}
		return &out, nil
	case http.StatusAccepted:
		return nil, ErrPaymentPending
	default:
		return nil, decodeAPIError(resp)
	}
}

// Orders lists the caller's orders, newest first.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var out []Order
	return out, c.do(ctx, http.MethodGet, "/api/orders", nil, &out)
}

// Order fetches one order by ID.
func (c *Client) Order(ctx context.Context, id string) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	_ = json.NewDecoder(resp.Body).Decode(apiErr)
	return apiErr
}
