package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("PanoGuess API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(deps.Logger, deps.DB, deps.Redis))

	// Player routes, identity resolved from the Bearer assertion.
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(deps.AuthSecret, deps.Engine))
		r.Get("/me", handleMe(deps.Engine))
		r.Post("/rounds", handleStartRound(deps.Engine))
		r.Post("/rounds/{roundID}/guess", handleSubmitGuess(deps.Engine))
		r.Get("/leaderboard", handleLeaderboard(deps.Leaderboard))
	})

	// Admin auth uses a session cookie against the shared DB.
	r.Post("/api/admin/login", handleAdminLogin(deps.DB))
	r.Post("/api/admin/logout", handleAdminLogout(deps.DB))
	r.Get("/api/admin/me", handleAdminMe(deps.DB))

	// Location management is the content-collaborator write path; it talks
	// to the store directly, not through the round engine.
	r.Route("/api/admin/locations", func(r chi.Router) {
		r.Use(adminAuthMiddleware(deps.DB))
		r.Get("/", handleAdminListLocations(deps.Store))
		r.Post("/", handleAdminCreateLocation(deps.Store))
		r.Get("/{id}", handleAdminGetLocation(deps.Store))
		r.Delete("/{id}", handleAdminDeleteLocation(deps.Store))
	})
}
