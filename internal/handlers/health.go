package handlers

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed openapi.yaml
var openAPIDocument []byte

const homePage = `<div style="text-align: center; padding-top: 20px;"><h1>Welcome to the Expense Tracker API</h1><p>API documentation is served at <a href="/api-docs">/api-docs</a>.</p></div>`

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(homePage))
}

// Healthz reports 200 when the database answers a ping within two seconds.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

// APIDocs serves the OpenAPI document describing this API.
func APIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}

type HealthResponse struct {
	Status string `json:"status"`
}
