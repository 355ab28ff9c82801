package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/AuthGo/pkg/health"
	"github.com/utafrali/AuthGo/pkg/middleware"
	"github.com/utafrali/AuthGo/internal/domain"
	"github.com/utafrali/AuthGo/internal/service"
	"github.com/utafrali/AuthGo/internal/token"
)

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService *service.AuthService,
	tokens *token.Manager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("auth"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator that bridges to the internal token manager.
	tokenValidator := func(tokenString string) (*middleware.Claims, error) {
		claims, err := tokens.ValidateAccessToken(tokenString)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}

	// Auth endpoints (public)
	authHandler := NewAuthHandler(authService, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.RefreshToken)
		r.Post("/logout", authHandler.Logout)

		// Change password requires an authenticated caller.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	// Current user endpoint (auth required)
	userHandler := NewUserHandler(authService, logger)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/me", userHandler.Me)
	})

	// Account administration endpoints (admin role required)
	adminHandler := NewAdminHandler(authService, logger)
	r.Route("/api/v1/admin/users", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequireRole(domain.RoleAdmin))

		r.Get("/{id}", adminHandler.GetUser)
		r.Post("/{id}/deactivate", adminHandler.DeactivateUser)
		r.Post("/{id}/activate", adminHandler.ActivateUser)
	})

	return r
}
