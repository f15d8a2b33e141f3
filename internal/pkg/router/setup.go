package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rendeza/rendeza/app/controllers"
	"github.com/rendeza/rendeza/internal/pkg/config"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the handlers and settings the routes are built from.
type Dependencies struct {
	Payment    *controllers.PaymentController
	Onboarding *controllers.OnboardingController
	Admin      *controllers.AdminBillingController

	AdminAuth config.AdminConfig
	// LimiterStorage may be nil, the limiter then counts in memory.
	LimiterStorage fiber.Storage
	// HealthCheck reports whether the database is reachable.
	HealthCheck func() error
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewApiRouter(deps), NewAdminRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
