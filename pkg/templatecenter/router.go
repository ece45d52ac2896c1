package templatecenter

import (
	"github.com/go-chi/chi/v5"

	"github.com/planhub/template-center/pkg/cache"
)

// NewRouter creates a chi router with the template center API routes. When
// the subsystem is disabled, every route answers 503. catalogCache may be
// nil; when set, the read-only catalog routes serve through it.
func NewRouter(svc *Service, enabled bool, catalogCache *cache.LRUCache) chi.Router {
	r := chi.NewRouter()
	if !enabled {
		r.NotFound(disabledHandler())
		r.MethodNotAllowed(disabledHandler())
		return r
	}

	r.Group(func(r chi.Router) {
		if catalogCache != nil {
			r.Use(cache.Middleware(catalogCache))
		}
		r.Get("/templates", listTemplatesHandler(svc))
		r.Get("/templates/{templateKey}", getTemplateHandler(svc))
	})

	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Post("/template/apply", applyHandler(svc))

		r.Get("/documents", listDocumentsHandler(svc))
		r.Get("/documents/{documentID}", getDocumentHandler(svc))
		r.Get("/documents/{documentID}/versions", documentHistoryHandler(svc))
		r.Post("/documents/{documentID}/transitions", transitionHandler(svc))
		r.Post("/documents/{documentID}/assignments", assignHandler(svc))

		r.Get("/gates/{gateKey}/blockers", gateBlockersHandler(svc))
		r.Post("/gates/{gateKey}/decisions", gateDecideHandler(svc))

		r.Get("/evidence-pack", evidencePackHandler(svc))
	})

	return r
}
