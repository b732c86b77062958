package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/contacthub/contacthub/internal/api"
	"github.com/contacthub/contacthub/internal/appctx"
)

// loggingMiddleware logs request information using slog.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		reqLogger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(appctx.WithLogger(r.Context(), reqLogger)))
	})
}

// authMiddleware verifies the bearer token and places the resolved identity
// in the request context. Requests without a valid token get the fixed 403
// envelope.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			api.WriteUnauthenticated(w)
			return
		}

		id, err := s.deps.Provider.VerifyToken(r.Context(), token)
		if err != nil {
			api.WriteUnauthenticated(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(appctx.WithIdentity(r.Context(), id)))
	})
}

// extractBearerToken gets the token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
