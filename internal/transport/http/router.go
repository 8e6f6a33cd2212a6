package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fedimux/internal/handler"
	"fedimux/internal/httputil"
	authmw "fedimux/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AccountHandler      *handler.AccountHandler
	RelationshipHandler *handler.RelationshipHandler
	PushHandler         *handler.PushHandler
	BadgeHandler        *handler.BadgeHandler
	JWTSecret           string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Everything else requires a service token issued to a trusted client.
	r.Group(func(r chi.Router) {
		r.Use(authmw.Auth(cfg.JWTSecret))

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", cfg.AccountHandler.List)
			r.Post("/", cfg.AccountHandler.SignIn)

			r.Route("/{domain}/{userID}", func(r chi.Router) {
				r.Delete("/", cfg.AccountHandler.SignOut)

				r.Get("/relationships/{targetID}", cfg.RelationshipHandler.Edge)
				r.Post("/relationships/follow", cfg.RelationshipHandler.ToggleFollow)
				r.Post("/relationships/reblogs", cfg.RelationshipHandler.ToggleShowReblogs)

				r.Post("/push/subscribe", cfg.PushHandler.Subscribe)
			})
		})

		// Inbound push deliveries from the push gateway
		r.Post("/push", cfg.PushHandler.Receive)
		r.Post("/push/devices", cfg.PushHandler.RegisterDevice)

		r.Route("/badge", func(r chi.Router) {
			r.Get("/", cfg.BadgeHandler.Get)
			r.Post("/recompute", cfg.BadgeHandler.Recompute)
		})

		r.Post("/notifications/dismiss", cfg.BadgeHandler.DismissNotifications)
	})

	return r
}
