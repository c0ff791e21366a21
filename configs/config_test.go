package config

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoggerMasksCredentialParams(t *testing.T) {
	var buf bytes.Buffer
	out := log.StandardLogger().Out
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(out) })

	r := chi.NewRouter()
	r.Use(CustomLoggerMiddleware())
	r.Get("/v1/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, target := range []string{
		"/v1/games/g1?jwt=SECRET.TOKEN.SIG",
		"/v1/ws?token=SECRET.TOKEN.SIG&room=g1",
	} {
		buf.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))

		line := buf.String()
		assert.NotContains(t, line, "SECRET", target)
		assert.Contains(t, line, "REDACTED", target)
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/games/g1/announcements?limit=3", nil))
	assert.Contains(t, buf.String(), "/v1/games/g1/announcements?limit=3")
}
