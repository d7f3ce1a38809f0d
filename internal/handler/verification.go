package handler

import (
	"net/http"
	"time"
)

type phoneRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type sendCodeBody struct {
	CooldownSeconds int       `json:"cooldownSeconds"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

type verifyBody struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) sendCode(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	res, err := h.gate.SendCode(r.Context(), req.Phone)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sendCodeBody{
		CooldownSeconds: res.CooldownSeconds,
		ExpiresAt:       res.ExpiresAt,
	})
}

func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	res, err := h.gate.VerifyCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, verifyBody{Token: res.Token, ExpiresAt: res.ExpiresAt})
}

func (h *Handler) resendCode(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	res, err := h.gate.ResendCode(r.Context(), req.Phone)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sendCodeBody{
		CooldownSeconds: res.CooldownSeconds,
		ExpiresAt:       res.ExpiresAt,
	})
}
