package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/rostilos/CodeCrow-sub011/internal/api/handler"
	apimw "github.com/rostilos/CodeCrow-sub011/internal/api/middleware"
	"github.com/rostilos/CodeCrow-sub011/internal/branchindex"
	"github.com/rostilos/CodeCrow-sub011/internal/store"
)

// RouterDeps holds the collaborators the handlers need beyond the store.
type RouterDeps struct {
	Registry branchindex.Registry
	Settings branchindex.SettingsSource
	Producer apihandler.IndexEnqueuer
	Policy   apihandler.RAGPolicy
}

func NewRouter(logger *slog.Logger, s *store.Store, deps *RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(apimw.CORS)
	r.Use(chimw.Recoverer)

	// Health checks
	health := apihandler.NewHealthHandler(s.Pool)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	if deps == nil {
		deps = &RouterDeps{}
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		projects := apihandler.NewProjectHandler(logger, s)
		branches := apihandler.NewBranchHandler(logger, s, deps.Registry, deps.Producer, deps.Policy)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projects.List)
			r.Post("/", projects.Create)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", projects.Get)
				r.Put("/settings", projects.UpdateSettings)

				// Branch names carry slashes, so the branch rides in a
				// query parameter rather than the path.
				r.Get("/branches", branches.List)
				r.Get("/branch", branches.Get)
				r.Delete("/branch", branches.Delete)
				r.Post("/reindex", branches.Reindex)
				r.Get("/rag-policy", branches.RAGPolicy)
			})
		})

		// Webhooks
		webhooks := apihandler.NewWebhookHandler(logger, deps.Settings, deps.Producer, deps.Policy)
		r.Post("/webhooks/push/{projectID}", webhooks.Push)
	})

	return r
}
