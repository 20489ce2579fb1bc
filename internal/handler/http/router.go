package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/authcore/internal/service"
	"github.com/utafrali/authcore/pkg/health"
	"github.com/utafrali/authcore/pkg/middleware"
)

// RouterConfig carries the HTTP-surface settings the router needs.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	RateLimitRPS   int
	RateLimitBurst int
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	tokenService *service.TokenService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Bridge from the middleware contract to the token service.
	authenticate := func(ctx context.Context, token string) (*middleware.Identity, error) {
		user, err := tokenService.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Identity{UserID: user.ID, Email: user.Email}, nil
	}

	authHandler := NewAuthHandler(tokenService, logger)
	userHandler := NewUserHandler(tokenService)

	rateLimit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	// Public endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(rateLimit)

			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(middleware.Auth(authenticate))
			r.Use(middleware.RequestLogger(logger))

			r.Get("/me", userHandler.GetProfile)
			r.Put("/update", userHandler.UpdateProfile)
			r.Get("/tokens", authHandler.ListTokens)

			r.Group(func(r chi.Router) {
				r.Use(rateLimit)

				r.Post("/rotate", authHandler.Rotate)
				r.Post("/revoke", authHandler.Revoke)
				r.Post("/revoke-all", authHandler.RevokeAll)
			})
		})
	})

	return r
}
