package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"

	"github.com/rendeza/rendeza/internal/pkg/config"
)

// RequireAdmin protects operator endpoints with HTTP basic auth. The password
// is checked against the bcrypt hash from the configuration.
func RequireAdmin(cfg config.AdminConfig) fiber.Handler {
	if !cfg.Enabled() {
		log.Warnf("[Admin] ADMIN_USER or ADMIN_PASSWORD_HASH not set, admin endpoints are disabled")
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
		}
	}

	hash := []byte(cfg.PasswordHash)
	return basicauth.New(basicauth.Config{
		Realm: "Rendeza Admin",
		Authorizer: func(user, pass string) bool {
			if user != cfg.User {
				return false
			}
			return bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
		},
		Unauthorized: func(c *fiber.Ctx) error {
			log.Warnf("[Admin] Rejected credentials from %s for %s", c.IP(), c.Path())
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="Rendeza Admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		},
	})
}
