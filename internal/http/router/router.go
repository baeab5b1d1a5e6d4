// Package router wires the etudiants handlers and middleware onto a chi mux.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aanand-mishra/etudiants-api/internal/http/handlers/student"
	"github.com/aanand-mishra/etudiants-api/internal/http/middleware"
	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/utils/response"
)

// New returns the HTTP handler for the whole API.
//
// Ids only match digits, so /etudiants/abc falls through to the 404 body.
// A known path with an unsupported method answers 405 in the same envelope.
func New(store storage.Storage, lg *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(lg))
	r.Use(middleware.Recovery(lg))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { response.MethodNotAllowed(w) })

	r.Get("/etudiants", student.GetList(store, lg))
	r.Post("/etudiants", student.New(store, lg))

	r.Get("/etudiants/{id:[0-9]+}", student.GetByID(store, lg))
	r.Patch("/etudiants/{id:[0-9]+}", student.Update(store, lg))
	r.Delete("/etudiants/{id:[0-9]+}", student.Delete(store, lg))

	return r
}
