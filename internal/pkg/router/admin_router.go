package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rendeza/rendeza/internal/pkg/constants"
	"github.com/rendeza/rendeza/internal/pkg/middleware"
)

type AdminRouter struct {
	deps Dependencies
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	app.Get(constants.AdminPaymentHealthRoute, middleware.RequireAdmin(h.deps.AdminAuth), h.deps.Admin.HandlePaymentHealth)
}

func NewAdminRouter(deps Dependencies) *AdminRouter {
	return &AdminRouter{deps: deps}
}
