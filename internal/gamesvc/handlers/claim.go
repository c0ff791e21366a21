package handlers

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/avvvet/assassins-services/internal/gamesvc/service"
)

func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	in := service.ClaimInput{}
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.GameID = chi.URLParam(r, "gameId")
	in.UserID = actor.UserID

	claim, err := h.Claims.SubmitClaim(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, claim)
}

func (h *Handler) PendingClaims(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	claims, err := h.Claims.PendingClaims(r.Context(), chi.URLParam(r, "gameId"), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, claims)
}

func (h *Handler) VerifyClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	res, err := h.Claims.VerifyClaim(r.Context(), chi.URLParam(r, "playerId"), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, res)
}

func (h *Handler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	attempt, err := h.Claims.RejectClaim(r.Context(), chi.URLParam(r, "playerId"), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, attempt)
}

func (h *Handler) SubmitDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	in := service.DisputeInput{}
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	attempt, err := h.Disputes.SubmitDispute(r.Context(), chi.URLParam(r, "playerId"), actor.UserID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, attempt)
}

func (h *Handler) CanDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	allowed, err := h.Disputes.CanDispute(r.Context(), chi.URLParam(r, "playerId"), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, map[string]bool{"canDispute": allowed})
}
