package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
)

// Registrar mounts one route group. Each file in this package declares
// a group and queues it from init, so adding an endpoint surface means
// adding a file here and nothing else.
type Registrar func(r chi.Router, d deps.Deps)

var groups []Registrar

// Register queues a route group for mounting.
func Register(reg Registrar) {
	groups = append(groups, reg)
}

// Mount attaches every registered group to r. Called once from
// server.New.
func Mount(r chi.Router, d deps.Deps) {
	for _, reg := range groups {
		reg(r, d)
	}
}
