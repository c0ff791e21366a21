package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(h.tokenAuth, jwtauth.TokenFromHeader))
			r.Use(jwtauth.Authenticator)

			r.Post("/me", h.EnsureUser)
			r.Get("/me", h.Profile)
			r.Get("/me/games", h.MyGames)
			r.Get("/leaderboard", h.Leaderboard)

			r.Post("/games", h.CreateGame)
			r.Route("/games/{gameId}", func(r chi.Router) {
				r.Get("/", h.GetGame)
				r.Post("/join", h.JoinGame)
				r.Post("/start", h.StartGame)

				r.Get("/players", h.ListPlayers)
				r.Get("/players/me", h.MyPlayer)
				r.Delete("/players/{playerId}", h.RemovePlayer)

				r.Post("/claims", h.SubmitClaim)
				r.Get("/claims/pending", h.PendingClaims)

				r.Post("/evidence", h.UploadEvidence)

				r.Get("/announcements", h.ListAnnouncements)
				r.Post("/announcements", h.CreateAnnouncement)
			})

			r.Post("/players/{playerId}/verify", h.VerifyClaim)
			r.Post("/players/{playerId}/reject", h.RejectClaim)
			r.Get("/players/{playerId}/dispute", h.CanDispute)
			r.Post("/players/{playerId}/dispute", h.SubmitDispute)

			r.Put("/announcements/{id}", h.EditAnnouncement)
			r.Delete("/announcements/{id}", h.DeleteAnnouncement)
		})

		// evidence is embedded with <img src>, so it also takes ?jwt=
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(h.tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
			r.Use(jwtauth.Authenticator)

			r.Get("/evidence/{fileId}", h.DownloadEvidence)
		})
	})
}

func (h *Handler) InitAuth(jwtKey string) {
	if jwtKey == "" {
		log.Warn("JWT_SECRET_KEY is empty, every token will fail verification")
	}
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	if log.IsLevelEnabled(log.DebugLevel) {
		_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
			"sub":      "debug-user",
			"username": "debug",
			"exp":      time.Now().Add(24 * time.Hour).Unix(),
		})
		log.Debugf("DEBUG: JWT for testing expires in 24h : %s", tokenString)
	}
}
