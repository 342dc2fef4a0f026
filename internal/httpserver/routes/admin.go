package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
	"github.com/pagefaves/pagefaves/internal/httpserver/handlers"
	"github.com/pagefaves/pagefaves/internal/httpserver/mw"
)

func init() { Register(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).
		Post("/reload", handlers.Reload(d))
}
