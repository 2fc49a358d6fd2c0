package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if g.config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(g.metrics.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public.
	r.Get("/api/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())

	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.deps.Audit))
		}

		r.Get("/status", g.handleStatus())
		r.Route("/api", func(r chi.Router) {
			r.Get("/sessions", g.handleListSessions())
			r.Post("/sessions", g.handleCreateSession())
			r.Delete("/sessions/{id}", g.handleDeleteSession())
			r.Get("/sessions/{id}/history", g.handleHistory())
			r.Post("/sessions/{id}/clear", g.handleClearHistory())
			r.Get("/sessions/{id}/transcript", g.handleTranscript())
			r.Get("/transcripts/search", g.handleSearchTranscripts())

			r.Post("/chat", g.handleChat())
			r.Get("/ws", g.handleWebSocket())

			r.Route("/admin", func(r chi.Router) {
				r.Get("/jobs", g.handleListJobs())
				r.Post("/jobs/{name}/run", g.handleRunJob())
				r.Get("/config", g.handleGetConfig())
			})
		})
	})

	return r
}
