package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/giftkart/storefront/internal/domain/cart"
	"github.com/giftkart/storefront/internal/domain/checkout"
	"github.com/giftkart/storefront/internal/domain/order"
	"github.com/giftkart/storefront/internal/domain/product"
	"github.com/giftkart/storefront/internal/domain/verification"
	"github.com/giftkart/storefront/internal/sms"
)

type errorBody struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string, details map[string]any) {
	respondJSON(w, status, errorBody{Code: status, Message: message, Details: details})
}

// respondDomainError maps domain failures onto the HTTP error envelope.
// Anything unmapped is a 500: logged with its cause, reported without it.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidQty  *cart.InvalidQuantityError
		unavailable *cart.ProductUnavailableError
		belowMin    *checkout.BelowMinimumError
		incomplete  *checkout.AddressIncompleteError
		invalidCode *verification.InvalidCodeError
		cooldown    *verification.CooldownActiveError
		illegal     *order.IllegalTransitionError
	)

	switch {
	case errors.Is(err, cart.ErrUnknownKind),
		errors.Is(err, verification.ErrInvalidPhone),
		errors.Is(err, checkout.ErrEmptyCollection):
		respondError(w, http.StatusBadRequest, err.Error(), nil)

	case errors.As(err, &invalidQty):
		respondError(w, http.StatusBadRequest, invalidQty.Error(), nil)

	case errors.As(err, &unavailable):
		respondError(w, http.StatusUnprocessableEntity, unavailable.Error(),
			map[string]any{"productId": unavailable.ProductID})

	case errors.As(err, &belowMin):
		respondError(w, http.StatusUnprocessableEntity, belowMin.Error(),
			map[string]any{"shortfall": belowMin.Shortfall})

	case errors.As(err, &incomplete):
		respondError(w, http.StatusUnprocessableEntity, incomplete.Error(),
			map[string]any{"missing": incomplete.Missing})

	case errors.As(err, &invalidCode):
		respondError(w, http.StatusUnauthorized, invalidCode.Error(),
			map[string]any{"attemptsRemaining": invalidCode.AttemptsRemaining})

	case errors.As(err, &cooldown):
		w.Header().Set("Retry-After", strconv.Itoa(cooldown.SecondsRemaining))
		respondError(w, http.StatusTooManyRequests, cooldown.Error(),
			map[string]any{"retryAfterSeconds": cooldown.SecondsRemaining})

	case errors.Is(err, verification.ErrNoActiveCode),
		errors.Is(err, verification.ErrCodeExpired):
		respondError(w, http.StatusUnauthorized, err.Error(), nil)

	case errors.Is(err, verification.ErrAttemptsExhausted),
		errors.Is(err, checkout.ErrPhoneNotVerified):
		respondError(w, http.StatusForbidden, err.Error(), nil)

	case errors.As(err, &illegal):
		respondError(w, http.StatusConflict, illegal.Error(), nil)

	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, checkout.ErrSessionUnknown):
		respondError(w, http.StatusNotFound, err.Error(), nil)

	case errors.Is(err, checkout.ErrPaymentFailed):
		respondError(w, http.StatusPaymentRequired, err.Error(), nil)

	case errors.Is(err, checkout.ErrGatewayUnavailable),
		errors.Is(err, sms.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error(), nil)

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
