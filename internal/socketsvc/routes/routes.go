package routes

import (
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/socketsvc/handlers"
	"github.com/avvvet/assassins-services/internal/socketsvc/ws"
)

var tokenAuth *jwtauth.JWTAuth

// SetRoutes mounts the socket endpoints. InitAuth must run first.
func SetRoutes(r chi.Router, ws *ws.Ws) {
	h := handlers.NewHandler(ws, tokenAuth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		// the handshake verifies its own token, see HandleWebSocket
		r.Get("/ws", h.HandleWebSocket)
	})
}

func InitAuth(jwtKey string) {
	if jwtKey == "" {
		log.Warn("JWT_SECRET_KEY is empty, every socket handshake will be refused")
	}
	tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)
}
