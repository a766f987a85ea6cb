package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/svclane/rolloutd/internal/httpserver/deps"
	"github.com/svclane/rolloutd/internal/httpserver/handlers"
)

func init() { Register(registerRollout) }

func registerRollout(r chi.Router, d deps.Deps) {
	r.Get("/api/rollout", handlers.Rollout(d))
	r.Post("/api/check", handlers.Check(d))
}
