package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/api/handlers"
	"github.com/mementolabs/memento/internal/api/middleware"
)

type RouterConfig struct {
	TokenValidator middleware.TokenValidator
	ThoughtHandler *handlers.ThoughtHandler
	SearchHandler  *handlers.SearchHandler
	ChatHandler    *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.TokenValidator))

		r.Route("/thoughts", func(r chi.Router) {
			r.Post("/", cfg.ThoughtHandler.Create)
			r.Get("/", cfg.ThoughtHandler.List)
			r.Get("/{id}", cfg.ThoughtHandler.Get)
			r.Post("/{id}/retry", cfg.ThoughtHandler.Retry)
		})

		r.Post("/search", cfg.SearchHandler.Search)
		r.Post("/chat", cfg.ChatHandler.Chat)
	})

	return r
}
