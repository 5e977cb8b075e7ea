package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/natours/tour-booking/docs"
	"github.com/natours/tour-booking/internal/api/handler"
	"github.com/natours/tour-booking/internal/api/middleware"
	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

const defaultRateLimitPerHour = 100

// RouterDeps are the collaborators the HTTP layer is built from.
type RouterDeps struct {
	Auth     ports.AuthService
	Users    ports.UserService
	Sessions ports.SessionAuthenticator
	Health   *handler.HealthHandler
	Logger   zerolog.Logger
	// BaseURL prefixes links sent by email; empty derives it per request.
	BaseURL string
	// RateLimitPerHour caps requests per client IP under /api.
	RateLimitPerHour int
	// MetricsRegistry receives the HTTP metrics and backs /metrics. Nil
	// selects the default Prometheus registry, where the auth metrics live.
	MetricsRegistry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.BodyLimit("10K"))
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsConfig(deps.MetricsRegistry)))

	// --- Operational endpoints ---
	health := deps.Health
	if health == nil {
		health = handler.NewHealthHandler(deps.Logger)
	}
	e.GET("/health", health.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", health.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", metricsHandler(deps.MetricsRegistry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- API ---
	authHandler := handler.NewAuthHandler(deps.Auth, deps.BaseURL)
	userHandler := handler.NewUserHandler(deps.Users)
	protect := middleware.Protect(deps.Sessions)

	apiGroup := e.Group("/api", rateLimiter(deps.RateLimitPerHour))
	v1 := apiGroup.Group("/v1")

	v1.GET("/session", authHandler.Session, middleware.IsLoggedIn(deps.Sessions, deps.Logger))

	users := v1.Group("/users")
	users.POST("/signup", authHandler.Signup)
	users.POST("/login", authHandler.Login)
	users.GET("/logout", authHandler.Logout)
	users.POST("/forgotPassword", authHandler.ForgotPassword)
	users.PATCH("/resetPassword/:token", authHandler.ResetPassword)

	users.PATCH("/updateMyPassword", authHandler.UpdatePassword, protect)
	users.GET("/me", userHandler.Me, protect)
	users.PATCH("/updateMe", userHandler.UpdateMe, protect)
	users.DELETE("/deleteMe", userHandler.DeleteMe, protect)
	users.PATCH("/:id/reactivate", userHandler.Reactivate, protect, middleware.RestrictTo(domain.RoleAdmin))

	return e
}

// rateLimiter allows perHour requests per client IP, refilled evenly over the hour.
func rateLimiter(perHour int) echo.MiddlewareFunc {
	if perHour <= 0 {
		perHour = defaultRateLimitPerHour
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perHour) / time.Hour.Seconds()),
		Burst:     perHour,
		ExpiresIn: time.Hour,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests from this IP, please try again in an hour!")
		},
	})
}

func metricsConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{Subsystem: "natours"}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			log.Info().
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
