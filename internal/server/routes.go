package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/contacthub/contacthub/internal/api"
	"github.com/contacthub/contacthub/internal/notify/hub"
)

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// RequestID must come first so GetReqID works in loggingMiddleware.
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Credential-guessing protection for the login endpoint.
	r.Use(s.rateLimitMiddleware(map[string]RateLimitConfig{
		"/api/v1/auth/login": {RequestsPerMinute: 10, Burst: 5},
	}))

	r.Get("/healthz", api.HealthHandler)

	// The in-process hub serves its own socket endpoint. Subscriptions are
	// authorized by signature, not bearer token, so it sits outside the
	// auth middleware.
	if h, ok := s.deps.Transport.(*hub.Hub); ok {
		r.Handle("/ws", h.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.authHandler.Register)
			r.Post("/login", s.authHandler.Login)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/pusher/auth", s.userHandler.PusherAuth)
			r.Post("/sendFriendReq", s.userHandler.SendFriendReq)
			r.Post("/dismissFriendReq", s.userHandler.DismissFriendReq)
			r.Get("/getConnectionRequests", s.userHandler.GetConnectionRequests)
			r.Post("/acceptFriendReq", s.userHandler.AcceptFriendReq)
			r.Get("/contacts", s.userHandler.Contacts)
			r.Post("/sendMessage", s.userHandler.SendMessage)
			r.Post("/findContact", s.userHandler.FindContact)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteNotFound(w, "no such endpoint")
	})

	return r
}
