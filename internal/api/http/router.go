package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/civicdesk/triage-service/internal/api/http/handlers"
	"github.com/civicdesk/triage-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Reports        *handlers.ReportsHandler
	Dashboard      *handlers.DashboardHandler
	Stream         *handlers.StreamHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	protected.Get("/me", cfg.Staff.Me)

	reports := protected.Group("/reports")
	reports.Get("/", cfg.Reports.List)
	reports.Get("/recent", cfg.Reports.Recent)
	reports.Get("/:id", cfg.Reports.Get)
	reports.Get("/:id/history", cfg.Reports.History)
	reports.Patch("/:id/status", cfg.Reports.UpdateStatus)
	reports.Patch("/:id/assignee", cfg.Reports.Assign)
	reports.Post("/:id/comments", cfg.Reports.AddComment)

	dashboard := protected.Group("/dashboard")
	dashboard.Get("/overview", cfg.Dashboard.Overview)
	dashboard.Get("/status-counts", cfg.Dashboard.StatusCounts)
	dashboard.Get("/map", cfg.Dashboard.Map)
	dashboard.Get("/stream", cfg.Stream.Stream)

	protected.Get("/staff/profiles", auth.RequireAdmin(), cfg.Staff.ListProfiles)
	protected.Get("/staff/profiles/:id", cfg.Staff.GetProfile)
}
