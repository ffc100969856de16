package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/genjobs/internal/api"
	apiMiddleware "github.com/phrazzld/genjobs/internal/api/middleware"
)

// setupRouter creates the router with the jobs API and health routes.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	jobHandler := api.NewJobHandler(app.dispatcher, app.registry, app.logger)

	r.Route("/api", func(r chi.Router) {
		if app.tokens != nil {
			r.Use(apiMiddleware.NewAuthMiddleware(app.tokens).Authenticate)
		}
		r.Post("/jobs", jobHandler.CreateJob)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Get("/events", jobHandler.ListEvents)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
