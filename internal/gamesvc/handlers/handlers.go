package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/gamesvc/service"
)

const maxJSONBody = 1 << 20

// Services are the use cases exposed over HTTP. Evidence may be nil when
// no file store is configured.
type Services struct {
	Users         *service.UserService
	Games         *service.GameService
	Claims        *service.EliminationService
	Disputes      *service.DisputeService
	Announcements *service.AnnouncementService
	Evidence      *service.EvidenceService
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	port      string
	Services
}

func NewHandler(port string, services Services) *Handler {
	return &Handler{port: port, Services: services}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Error writing response %s", err)
	}
}

func (h *Handler) ok(w http.ResponseWriter, status int, data interface{}) {
	h.CreateResponse(w, Response{Message: "ok", Code: status, Data: data})
}

// fail maps a service error to its HTTP status. The response message
// carries the machine readable error code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrAuthorization):
		status = http.StatusForbidden
	}

	code := service.CodeOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("Error %s %s: %s", r.Method, r.URL.Path, err)
		code = "internal"
		msg = "internal error"
	}

	h.CreateResponse(w, Response{Message: code, Code: status, Error: msg})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, map[string]string{"status": "game service is running at port " + h.port})
}

// actor reads the caller from the verified token. The user id is the
// token subject.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	token, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || token == nil || token.Subject() == "" {
		h.CreateResponse(w, Response{Message: "unauthorized", Code: http.StatusUnauthorized, Error: "token has no subject"})
		return service.Actor{}, false
	}

	actor := service.Actor{UserID: token.Subject()}
	actor.Email, _ = claims["email"].(string)
	actor.Username, _ = claims["username"].(string)
	return actor, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &service.Error{Kind: service.ErrValidation, Code: "validation", Message: "invalid request body: " + err.Error()}
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &service.Error{Kind: service.ErrValidation, Code: "validation", Message: key + " must be a non-negative integer"}
	}
	return n, nil
}
