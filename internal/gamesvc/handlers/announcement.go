package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
)

// defaultAnnouncementLimit is how many feed entries a client gets without
// asking for more.
const defaultAnnouncementLimit = 5

type announcementRequest struct {
	Content string `json:"content"`
}

func (h *Handler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultAnnouncementLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.Announcements.List(r.Context(), chi.URLParam(r, "gameId"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, list)
}

func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req := announcementRequest{}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.Announcements.Create(r.Context(), chi.URLParam(r, "gameId"), actor.UserID, req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, a)
}

func (h *Handler) EditAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req := announcementRequest{}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.Announcements.Edit(r.Context(), chi.URLParam(r, "id"), actor.UserID, req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, a)
}

func (h *Handler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.Announcements.Delete(r.Context(), chi.URLParam(r, "id"), actor.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, nil)
}
