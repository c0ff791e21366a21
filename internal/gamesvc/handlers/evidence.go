package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/gamesvc/service"
)

// multipart framing on top of the file itself
const multipartOverhead = 1 << 20

func (h *Handler) evidenceDisabled(w http.ResponseWriter) bool {
	if h.Evidence != nil {
		return false
	}
	h.CreateResponse(w, Response{Message: "evidence_disabled", Code: http.StatusNotImplemented, Error: "evidence storage is not configured"})
	return true
}

func (h *Handler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	if h.evidenceDisabled(w) {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Evidence.MaxBytes()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, &service.Error{Kind: service.ErrValidation, Code: "validation", Message: "file is too large"})
			return
		}
		h.fail(w, r, &service.Error{Kind: service.ErrValidation, Code: "validation", Message: "multipart field file is required"})
		return
	}
	defer file.Close()

	ev, err := h.Evidence.Upload(r.Context(), service.UploadInput{
		GameID:      chi.URLParam(r, "gameId"),
		UserID:      actor.UserID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, ev)
}

func (h *Handler) DownloadEvidence(w http.ResponseWriter, r *http.Request) {
	if h.evidenceDisabled(w) {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	rc, meta, err := h.Evidence.Open(r.Context(), chi.URLParam(r, "fileId"), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": meta.Filename}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		log.Warnf("evidence %s: stream interrupted: %s", meta.ID, err)
	}
}
