package httpapi

import (
	"crypto/rsa"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the operator HTTP API's router. If pubKey is non-nil,
// every /api/v1 route requires a valid RS256 bearer token; /healthz is
// always unauthenticated. Every route is GET-only: any other verb against
// a registered path receives 405 Method Not Allowed from chi's router.
func NewRouter(srv *Server, pubKey *rsa.PublicKey) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealthz)

	r.Route("/api/v1", func(api chi.Router) {
		if pubKey != nil {
			api.Use(JWTMiddleware(pubKey))
		}
		api.Get("/ledger", srv.handleGetLedger)
		api.Get("/intents/{id}/files", srv.handleGetIntentFiles)
		api.Get("/lessons", srv.handleGetLessons)
	})

	return r
}
