package handlers

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/avvvet/assassins-services/internal/gamesvc/models"
	"github.com/avvvet/assassins-services/internal/gamesvc/service"
)

type createGameResponse struct {
	Game   *models.Game   `json:"game"`
	Player *models.Player `json:"player"`
}

func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	in := service.CreateGameInput{}
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	game, player, err := h.Games.CreateGame(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, createGameResponse{Game: game, Player: player})
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.Games.GetGame(r.Context(), chi.URLParam(r, "gameId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, game)
}

func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	in := service.JoinGameInput{}
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	player, err := h.Games.JoinGame(r.Context(), actor, chi.URLParam(r, "gameId"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, player)
}

func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	game, err := h.Games.Start(r.Context(), chi.URLParam(r, "gameId"), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, game)
}

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.Games.ListPlayers(r.Context(), chi.URLParam(r, "gameId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, players)
}

func (h *Handler) MyPlayer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	view, err := h.Games.MyPlayer(r.Context(), chi.URLParam(r, "gameId"), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, view)
}

func (h *Handler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	err := h.Games.RemovePlayer(r.Context(), chi.URLParam(r, "gameId"), actor.UserID, chi.URLParam(r, "playerId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, nil)
}
