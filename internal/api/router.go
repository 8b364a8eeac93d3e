package api

import (
	"net/http"
	"time"

	"codearena/internal/api/handler"
	"codearena/internal/api/middleware"
	"codearena/internal/app/service"
	"codearena/internal/app/session"
	"codearena/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	contestService *service.ContestService,
	leaderboardService *service.LeaderboardService,
	sessionManager *session.Manager,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies "Authorization: Bearer T" and puts the claims in context.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(authService)
		v1.Route("/auth", authHandler.RegisterRoutes)

		// Everything else requires a signed-in participant. The contest list
		// and detail pages gate content by phase, not by auth level, so they
		// sit behind the same authenticator.
		v1.Group(func(private chi.Router) {
			private.Use(middleware.Authenticator)

			contestHandler := handler.NewContestHandler(contestService, leaderboardService)
			private.Route("/contests", contestHandler.RegisterRoutes)

			sessionHandler := handler.NewSessionHandler(sessionManager)
			private.Route("/sessions", sessionHandler.RegisterRoutes)
		})
	})

	return r
}
