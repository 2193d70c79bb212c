// Package router registers the HTTP surface and composes each route's
// middleware chain: correlation id, access log, CORS, size caps, rate
// limiting, then authentication where required.
package router

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"
	em "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/procurehub/marketplace-api/internal/config"
	"github.com/procurehub/marketplace-api/internal/handler"
	"github.com/procurehub/marketplace-api/internal/middleware"
	"github.com/procurehub/marketplace-api/internal/model"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Rate   *middleware.RateLimiter

	Auth      *handler.AuthHandler
	Vendor    *handler.VendorHandler
	Quote     *handler.QuoteHandler
	Analytics *handler.AnalyticsHandler
	AI        *handler.AIHandler
	Health    *handler.HealthHandler
}

// Register wires all routes onto e.
func Register(e *echo.Echo, d Deps) {
	e.HTTPErrorHandler = handler.ErrorHandler(d.Logger, d.Cfg.Production())

	e.Use(middleware.RequestID())
	e.Use(middleware.AccessLog(d.Logger))
	e.Use(em.Recover())
	e.Use(em.CORSWithConfig(em.CORSConfig{
		AllowOrigins: d.Cfg.Origins(),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "X-API-Key", middleware.HeaderRequestID},
		AllowMethods: []string{echo.GET, echo.POST, echo.PATCH, echo.PUT, echo.DELETE, echo.OPTIONS},
	}))
	e.Use(d.Rate.Limit(config.RateGeneral))

	jsonBody := em.BodyLimit(strconv.FormatInt(d.Cfg.MaxJSONBody, 10))
	uploadBody := em.BodyLimit(strconv.FormatInt(d.Cfg.MaxUploadSize, 10))

	buyerAuth := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole(string(model.RoleBuyer), string(model.RoleAdmin)),
	}
	vendorAuth := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole("vendor"),
	}

	e.GET("/health", d.Health.Health)

	// Account and session endpoints. Login and signup carry their own
	// tighter budgets on top of the general limiter.
	auth := e.Group("/auth", jsonBody)
	auth.POST("/register", d.Auth.Register, d.Rate.Limit(config.RateSignup))
	auth.POST("/login", d.Auth.Login, d.Rate.Limit(config.RateLogin))
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout)
	auth.GET("/verify", d.Auth.Verify)
	auth.POST("/vendor-register", d.Vendor.Register, d.Rate.Limit(config.RateSignup))
	auth.POST("/vendor-login", d.Vendor.Login, d.Rate.Limit(config.RateLogin))
	auth.POST("/vendor-forgot-password", d.Vendor.ForgotPassword, d.Rate.Limit(config.RateSignup))
	auth.POST("/vendor-reset-password", d.Vendor.ResetPassword)
	auth.GET("/verify-reset-token/:token", d.Vendor.VerifyResetToken)

	// Quote lifecycle. Submission is multipart with the larger body cap and
	// the failure-counted upload budget.
	quotes := e.Group("/quotes")
	quotes.POST("", d.Quote.Submit,
		append([]echo.MiddlewareFunc{uploadBody, d.Rate.Limit(config.RateUpload)}, buyerAuth...)...)
	quotes.GET("", d.Quote.List, buyerAuth...)
	quotes.GET("/:id/matches", d.Quote.Matches, buyerAuth...)
	quotes.PATCH("/:id/status", d.Quote.Transition,
		append([]echo.MiddlewareFunc{jsonBody}, buyerAuth...)...)

	// Vendor self-service.
	vendors := e.Group("/vendors/me", vendorAuth...)
	vendors.GET("", d.Vendor.Me)
	vendors.PATCH("", d.Vendor.UpdateMe, jsonBody)
	vendors.GET("/products", d.Vendor.MyProducts)

	// Visibility instrumentation. Writes are public (beacons), reads need
	// vendor auth except the public profile summary.
	analytics := e.Group("/analytics")
	analytics.POST("/track", d.Analytics.Track, jsonBody)
	analytics.POST("/batch", d.Analytics.Batch, jsonBody)
	analytics.GET("/stats", d.Analytics.Stats, vendorAuth...)
	analytics.GET("/daily", d.Analytics.Daily, vendorAuth...)
	analytics.GET("/sources", d.Analytics.Sources, vendorAuth...)
	analytics.GET("/geo", d.Analytics.GeoStats, vendorAuth...)
	analytics.GET("/vendor/:vendorId", d.Analytics.VendorSummary)

	// Assistant surface.
	aig := e.Group("/ai")
	aig.POST("/suggest-copiers", d.AI.Suggest, jsonBody, d.Rate.Limit(config.RateAI))
	aig.GET("/suppliers", d.AI.SearchSuppliers)
	aig.POST("/suppliers", d.AI.SearchSuppliers, jsonBody)
	aig.GET("/services", d.AI.Services)
	aig.GET("/locations", d.AI.Locations)
	aig.GET("/supplier/:id", d.AI.Supplier)
	aig.POST("/quote", d.AI.Quote, jsonBody, d.Rate.Limit(config.RateAPIKey))
	aig.GET("/health", d.Health.Health)
	aig.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	aig.GET("/docs", d.AI.Docs)
}
