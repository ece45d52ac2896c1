package audit

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with audit API routes.
func NewRouter(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/events", listEventsHandler(store))
	r.Get("/projects/{projectID}/events", listProjectEventsHandler(store))
	return r
}
