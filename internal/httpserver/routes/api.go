package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
	"github.com/pagefaves/pagefaves/internal/httpserver/handlers"
	"github.com/pagefaves/pagefaves/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Use(mw.CORS(d.AllowedOrigins))
		api.Use(mw.RateLimit(d.RateLimit))

		api.Post("/bookmarks", handlers.Bookmarks(d))
		api.Post("/events", handlers.Events(d))
		api.Get("/share/{token}", handlers.Share(d))
	})
}
