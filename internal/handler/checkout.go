package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/giftkart/storefront/internal/domain/cart"
	"github.com/giftkart/storefront/internal/domain/checkout"
	"github.com/giftkart/storefront/internal/domain/order"
)

type checkoutRequest struct {
	Kind              string        `json:"kind"`
	Method            string        `json:"method"`
	Address           order.Address `json:"address"`
	VerificationToken string        `json:"verificationToken"`
	IdempotencyKey    string        `json:"idempotencyKey,omitempty"`
}

type checkoutBody struct {
	Order               *orderBody `json:"order,omitempty"`
	PaymentSessionRef   string     `json:"paymentSessionRef,omitempty"`
	DuplicateSuppressed bool       `json:"duplicateSuppressed,omitempty"`
}

// postCheckout runs one checkout attempt. COD answers 201 with the order;
// online answers 202 with the payment session to complete.
func (h *Handler) postCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	kind, err := cart.ParseKind(req.Kind)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	method, err := order.ParseMethod(req.Method)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := h.orch.Checkout(r.Context(), checkout.Request{
		OwnerID:           ownerID(r.Context()),
		Kind:              kind,
		Address:           req.Address,
		Method:            method,
		VerificationToken: req.VerificationToken,
		IdempotencyKey:    req.IdempotencyKey,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	body := checkoutBody{
		PaymentSessionRef:   res.PaymentSessionRef,
		DuplicateSuppressed: res.DuplicateSuppressed,
	}
	if res.Order != nil {
		ob := orderToBody(res.Order)
		body.Order = &ob
		respondJSON(w, http.StatusCreated, body)
		return
	}
	respondJSON(w, http.StatusAccepted, body)
}

type confirmRequest struct {
	SessionRef string `json:"sessionRef"`
}

// confirmCheckout is the client-side callback after the gateway redirect. It
// races the webhook for the same session; both converge on the same order.
func (h *Handler) confirmCheckout(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	o, err := h.orch.ConfirmPayment(r.Context(), req.SessionRef)
	if err != nil {
		if errors.Is(err, checkout.ErrConfirmationPending) {
			respondJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
			return
		}
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToBody(o))
}

type webhookEvent struct {
	SessionRef string `json:"sessionRef"`
	Event      string `json:"event"`
}

// paymentWebhook receives gateway notifications. The gateway signs the raw
// body with HMAC-SHA256; an invalid signature is rejected before any decoding.
// A verdict of failed is still a successfully processed notification.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body", nil)
		return
	}

	sig, err := hex.DecodeString(r.Header.Get("X-Gateway-Signature"))
	if err != nil || !validSignature(h.webhookSecret, body, sig) {
		respondError(w, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.SessionRef == "" {
		respondError(w, http.StatusBadRequest, "invalid event", nil)
		return
	}

	o, err := h.orch.ConfirmPayment(r.Context(), ev.SessionRef)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "paid", "orderId": o.ID})
	case errors.Is(err, checkout.ErrConfirmationPending):
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
	case errors.Is(err, checkout.ErrPaymentFailed):
		respondJSON(w, http.StatusOK, map[string]string{"status": "failed"})
	case errors.Is(err, checkout.ErrSessionUnknown):
		respondError(w, http.StatusNotFound, err.Error(), nil)
	default:
		zctx.From(r.Context()).Error("webhook processing failed",
			zap.String("session_ref", ev.SessionRef),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func validSignature(secret, body, sig []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), sig)
}
