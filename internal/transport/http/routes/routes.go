package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/infra/config"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/security"
	"github.com/abelngansop-dot/studio-sub000/internal/transport/http/handlers"
	"github.com/abelngansop-dot/studio-sub000/internal/transport/http/middleware"
	"github.com/abelngansop-dot/studio-sub000/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	Services       *usecase.ServiceProvider
	Identity       *security.TokenIdentityProvider
	Tokens         *security.JWTManager
	Notifications  handlers.ToastSource
	Metrics        middleware.HTTPRecorder
	TracerProvider trace.TracerProvider
	Database       DatabaseChecker
	Cache          CacheChecker
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
	r.Use(middleware.Tracing(middleware.TracingOptions{TracerProvider: deps.TracerProvider}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))

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

	if deps.Tokens != nil {
		r.GET("/.well-known/jwks.json", handlers.NewJWKSHandler(deps.Tokens).Keys)
	}

	api := r.Group("/api/v1")
	if deps.Tokens != nil {
		api.Use(middleware.Authenticate(deps.Tokens))
	}
	{
		if deps.Identity != nil && deps.Services != nil && deps.Tokens != nil {
			sessionHandler := handlers.NewSessionHandler(deps.Identity, deps.Services)
			sessionHandler.RegisterRoutes(api)

			serviceGroup := api.Group("/service")
			serviceGroup.Use(middleware.RequireIdentity(false), middleware.RequireRole(security.AdminRole))
			sessionHandler.RegisterServiceRoutes(serviceGroup)
		}

		if deps.Notifications != nil && deps.Tokens != nil {
			notificationGroup := api.Group("/notifications")
			notificationGroup.Use(middleware.RequireIdentity(false))
			handlers.NewNotificationHandler(deps.Notifications).RegisterRoutes(notificationGroup, middleware.RequireRole(security.AdminRole))
		}

		if deps.Services != nil {
			handlers.NewDocumentHandler(deps.Services).RegisterRoutes(api.Group("/collections"))
			handlers.NewWatchHandler(deps.Services).RegisterRoutes(api.Group("/watch"))
		}
	}

	handlers.RegisterSwagger(r)

	return r
}
