package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jason-s-yu/tambola/internal/auth"
	"github.com/jason-s-yu/tambola/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators the HTTP surface is built from. Events and Checks
// may be nil.
type Deps struct {
	Logger        *logrus.Logger
	Games         GameService
	Authenticator auth.Authenticator
	Events        EventSource
	Checks        map[string]Checker
}

// NewRouter wires every dashboard route.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(d.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/", PingHandler)
	r.Get("/healthz", HealthHandler(d.Logger, d.Checks))

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(d.Authenticator))

		r.Get("/me", MeHandler)
		r.Get("/games", ListGamesHandler(d.Logger, d.Games))
		r.Post("/games", CreateGameHandler(d.Logger, d.Games))
		r.Get("/games/ws", GameFeedHandler(d.Logger, d.Events))
	})
	return r
}
