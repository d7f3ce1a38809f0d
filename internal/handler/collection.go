package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giftkart/storefront/internal/domain/cart"
)

type mutateRequest struct {
	Action    string `json:"action"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Mutation actions.
const (
	actionAdd    = "add"
	actionSet    = "set"
	actionRemove = "remove"
	actionClear  = "clear"
)

func parseKind(r *http.Request) (cart.Kind, error) {
	return cart.ParseKind(chi.URLParam(r, "kind"))
}

// getCollection returns the authoritative snapshot without mutating anything.
func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	snap, err := h.carts.Snapshot(r.Context(), ownerID(r.Context()), kind)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// mutateCollection applies one mutation and returns the full resulting
// snapshot. Clients reconcile against it rather than applying local deltas.
func (h *Handler) mutateCollection(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	var req mutateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	ctx := r.Context()
	owner := ownerID(ctx)

	var snap *cart.Snapshot
	switch req.Action {
	case actionAdd:
		snap, err = h.carts.Add(ctx, owner, kind, req.ProductID, req.Quantity)
	case actionSet:
		snap, err = h.carts.SetQuantity(ctx, owner, kind, req.ProductID, req.Quantity)
	case actionRemove:
		snap, err = h.carts.Remove(ctx, owner, kind, req.ProductID)
	case actionClear:
		snap, err = h.carts.Clear(ctx, owner, kind)
	default:
		respondError(w, http.StatusBadRequest, "unknown action", nil)
		return
	}
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
