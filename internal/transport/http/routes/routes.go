package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/infra/config"
	"github.com/certbridge/auth-service/internal/infra/security"
	"github.com/certbridge/auth-service/internal/transport/http/handlers"
	"github.com/certbridge/auth-service/internal/transport/http/middleware"
	"github.com/certbridge/auth-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Login        *usecase.LoginService
	Registration *usecase.RegistrationService
	Passwords    *usecase.PasswordService
	TwoFactor    *usecase.TwoFactorService
	Sessions     *usecase.SessionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config       *config.AppConfig
	Logger       *zap.Logger
	RateLimiter  *middleware.RateLimiter
	Services     ServiceSet
	TokenManager *security.TokenManager
	Accounts     port.AccountRepository
	HTTPMetrics  *middleware.HTTPMetrics
	LoginMetrics *middleware.LoginMetrics
	Database     DatabaseChecker
	Cache        CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	authenticator := middleware.NewAuthenticator(deps.TokenManager, deps.Accounts, deps.Config.JWT.CookieName)
	authMiddleware := authenticator.RequireAuth()

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(
			deps.Services.Login,
			deps.Services.Sessions,
			deps.Config.JWT,
			handlers.WithLoginMetrics(deps.LoginMetrics),
		)
		authHandler.RegisterRoutes(authGroup, authMiddleware, buildLoginMiddlewares(deps)...)

		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration)
		registrationHandler.RegisterRoutes(authGroup, buildRegisterMiddlewares(deps)...)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords)
		passwordGroup := api.Group("/password")
		// Expired-password accounts must still reach the change endpoint.
		passwordGroup.POST("/change", authenticator.RequireAuthAllowingExpiredPassword(), passwordHandler.ChangePassword)

		twoFactorHandler := handlers.NewTwoFactorHandler(deps.Services.TwoFactor)
		twoFactorGroup := api.Group("/2fa")
		twoFactorGroup.Use(authMiddleware)
		twoFactorHandler.RegisterRoutes(twoFactorGroup)

		sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions)
		sessionGroup := api.Group("/sessions")
		sessionGroup.Use(authMiddleware)
		sessionHandler.RegisterRoutes(sessionGroup)
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.ThrottleRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.Throttle(rule)}
}

func buildRegisterMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.RegisterMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	rule := middleware.ThrottleRule{
		Name:       "auth_register_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.Throttle(rule)}
}
