package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/carebridge/identity-core/docs"
	"github.com/carebridge/identity-core/internal/api/handler"
	"github.com/carebridge/identity-core/internal/api/middleware"
	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/policy"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Identity ports.IdentityService
	Accounts ports.AccountService
	Admin    ports.AdminService
	Policy   policy.Evaluator
	// Checks back the readiness probe, keyed by dependency name.
	Checks map[string]handler.CheckFunc
	// Registry receives the HTTP metrics. Defaults to the Prometheus
	// default registry.
	Registry *prometheus.Registry
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(metricsMiddleware(deps.Registry))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Identity, deps.Accounts)
	profileHandler := handler.NewProfileHandler(deps.Identity, deps.Policy)
	adminHandler := handler.NewAdminHandler(deps.Admin)

	requireSession := middleware.Auth(deps.Identity)
	optionalSession := middleware.OptionalAuth(deps.Identity)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/verify", authHandler.Verify)
	auth.POST("/password/forgot", authHandler.ForgotPassword)
	auth.POST("/password/reset", authHandler.ResetPassword)
	auth.POST("/logout", authHandler.Logout, requireSession)
	auth.POST("/refresh", authHandler.Refresh, requireSession)
	auth.POST("/verify/resend", authHandler.ResendVerification, requireSession)
	auth.PUT("/password", authHandler.UpdatePassword, requireSession)

	// --- Identity and profiles ---
	v1 := e.Group("/v1")
	v1.GET("/me", profileHandler.Me, requireSession)
	v1.GET("/access/:role", profileHandler.Access, optionalSession)
	v1.PATCH("/doctor/profile", profileHandler.UpdateDoctorProfile,
		requireSession, middleware.RequireRole(deps.Policy, domain.RoleDoctor))
	v1.PATCH("/patient/profile", profileHandler.UpdatePatientProfile,
		requireSession, middleware.RequireRole(deps.Policy, domain.RolePatient))

	// --- Admin ---
	admin := v1.Group("/admin", requireSession, middleware.RequireRole(deps.Policy, domain.RoleAdmin))
	admin.GET("/doctors", adminHandler.ListDoctors)
	trusted := middleware.RequireTrustedRole(deps.Policy, domain.RoleAdmin)
	admin.POST("/doctors/:id/approve", adminHandler.ApproveDoctor, trusted)
	admin.POST("/doctors/:id/reject", adminHandler.RejectDoctor, trusted)

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", metricsHandler(deps.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func metricsMiddleware(reg *prometheus.Registry) echo.MiddlewareFunc {
	cfg := echoprometheus.MiddlewareConfig{
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return echoprometheus.NewMiddlewareWithConfig(cfg)
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}

// requestLogger writes one zerolog entry per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
