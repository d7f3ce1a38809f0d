package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giftkart/storefront/internal/domain/order"
)

type orderBody struct {
	ID             string        `json:"id"`
	SourceKind     string        `json:"sourceKind"`
	Items          []order.Item  `json:"items"`
	Address        order.Address `json:"address"`
	Method         string        `json:"method"`
	ItemsTotal     int64         `json:"itemsTotal"`
	DeliveryCharge int64         `json:"deliveryCharge"`
	TotalAmount    int64         `json:"totalAmount"`
	Status         string        `json:"status"`
	PaymentStatus  string        `json:"paymentStatus"`
	TrackingNumber string        `json:"trackingNumber,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

func orderToBody(o *order.Order) orderBody {
	return orderBody{
		ID:             o.ID,
		SourceKind:     string(o.SourceKind),
		Items:          o.Items,
		Address:        o.Address,
		Method:         string(o.Method),
		ItemsTotal:     o.ItemsTotal,
		DeliveryCharge: o.DeliveryCharge,
		TotalAmount:    o.TotalAmount,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		TrackingNumber: o.TrackingNumber,
		CreatedAt:      o.CreatedAt,
	}
}

// listOrders returns the acting owner's orders, newest first.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.ledger.ListByOwner(r.Context(), ownerID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	out := make([]orderBody, len(orders))
	for i := range orders {
		out[i] = orderToBody(&orders[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// getOrder returns one order, only to its owner.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ledger.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if o.OwnerID != ownerID(r.Context()) {
		respondError(w, http.StatusNotFound, order.ErrNotFound.Error(), nil)
		return
	}
	respondJSON(w, http.StatusOK, orderToBody(o))
}

type statusRequest struct {
	Status string `json:"status"`
}

// advanceOrderStatus moves an order along the fulfillment machine. Illegal
// transitions answer 409.
func (h *Handler) advanceOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	next := order.Status(req.Status)
	switch next {
	case order.StatusPending, order.StatusProcessing, order.StatusShipped,
		order.StatusDelivered, order.StatusCancelled:
	default:
		respondError(w, http.StatusBadRequest, "unknown status", nil)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.ledger.AdvanceFulfillment(r.Context(), id, next); err != nil {
		respondDomainError(w, r, err)
		return
	}

	o, err := h.ledger.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToBody(o))
}

type trackingRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

// setOrderTracking records the carrier tracking number.
func (h *Handler) setOrderTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if err := decodeJSON(r, &req); err != nil || req.TrackingNumber == "" {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.ledger.SetTracking(r.Context(), id, req.TrackingNumber); err != nil {
		respondDomainError(w, r, err)
		return
	}

	o, err := h.ledger.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orderToBody(o))
}
