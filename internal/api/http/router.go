package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/asistlabs/asist-service/internal/api/http/handlers"
	"github.com/asistlabs/asist-service/internal/auth"
	"github.com/asistlabs/asist-service/internal/config"
	"github.com/asistlabs/asist-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Gatherer       prometheus.Gatherer
	RateLimit      config.RateLimitConfig
	Logger         *zap.Logger
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	throttled := RateLimit(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, cfg.Logger)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", throttled, cfg.Auth.Register)
	authGroup.Post("/login", throttled, cfg.Auth.Login)
	authGroup.Post("/refresh-token", throttled, cfg.Auth.RefreshToken)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/password/change", auth.RequireAuthenticated(), cfg.Auth.ChangePassword)

	api.Get("/users/me", auth.RequireAuthenticated(), cfg.Users.Me)

	admin := api.Group("/admin", auth.RequireAuthority(string(domain.RoleAdmin)))
	admin.Get("/users/:email", cfg.Users.ByEmail)
}
