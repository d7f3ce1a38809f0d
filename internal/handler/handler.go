// Package handler exposes the storefront over HTTP. It decodes and validates
// the wire shapes, resolves the acting owner from the API key, and delegates
// every decision to the domain services.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giftkart/storefront/internal/domain/account"
	"github.com/giftkart/storefront/internal/domain/cart"
	"github.com/giftkart/storefront/internal/domain/checkout"
	"github.com/giftkart/storefront/internal/domain/order"
	"github.com/giftkart/storefront/internal/domain/product"
	"github.com/giftkart/storefront/internal/domain/verification"
)

// Handler carries the domain dependencies for all routes.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	gate     *verification.Gate
	ledger   *order.Ledger
	orch     *checkout.Orchestrator

	auth *Auth
	// webhookSecret keys the HMAC signature check on gateway webhooks.
	webhookSecret []byte
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	gate *verification.Gate,
	ledger *order.Ledger,
	orch *checkout.Orchestrator,
	auth *Auth,
	webhookSecret []byte,
) *Handler {
	return &Handler{
		products:      products,
		carts:         carts,
		gate:          gate,
		ledger:        ledger,
		orch:          orch,
		auth:          auth,
		webhookSecret: webhookSecret,
	}
}

// Routes builds the router. The /api surface requires an API key; the webhook
// authenticates by signature instead, since the gateway holds no key.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.With(RequireScope(account.ScopeStorefront)).Group(func(r chi.Router) {
			r.Get("/products", h.listProducts)

			r.Route("/collections/{kind}", func(r chi.Router) {
				r.Get("/", h.getCollection)
				r.Post("/items", h.mutateCollection)
			})

			r.Route("/verification", func(r chi.Router) {
				r.Post("/send", h.sendCode)
				r.Post("/verify", h.verifyCode)
				r.Post("/resend", h.resendCode)
			})

			r.Post("/checkout", h.postCheckout)
			r.Post("/checkout/confirm", h.confirmCheckout)

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
		})

		r.With(RequireScope(account.ScopeAdmin)).Group(func(r chi.Router) {
			r.Post("/orders/{id}/status", h.advanceOrderStatus)
			r.Post("/orders/{id}/tracking", h.setOrderTracking)
		})
	})

	r.Post("/webhooks/payment", h.paymentWebhook)

	return r
}

// listProducts returns the whole catalog.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	out := make([]productBody, len(products))
	for i, p := range products {
		out[i] = productBody{
			ID:        p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price,
			Available: p.Available,
		}
	}
	respondJSON(w, http.StatusOK, out)
}

type productBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
	Available bool   `json:"available"`
}
