package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/rendeza/rendeza/internal/pkg/constants"
)

const (
	publicRateLimit       = 30
	publicRateLimitWindow = time.Minute
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Get(constants.HealthRoute, h.health)

	// The provider retries on its own schedule; webhooks are not rate limited.
	app.Post(constants.WebhookRoute, h.deps.Payment.HandleWebhook)
	app.Get(constants.WebhookRoute, h.deps.Payment.HandleWebhookStatus)

	public := limiter.New(limiter.Config{
		Max:        publicRateLimit,
		Expiration: publicRateLimitWindow,
		Storage:    h.deps.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			log.Warnf("[API] Rate limit reached for %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	})
	app.Post(constants.CreatePaymentRoute, public, h.deps.Payment.HandleCreatePayment)
	app.Post(constants.VerifyPaymentRoute, public, h.deps.Payment.HandleVerifyPayment)
	app.Post(constants.OnboardingRoute, public, h.deps.Onboarding.HandleSubmit)
	app.Post(constants.ContactRoute, public, h.deps.Onboarding.HandleContact)
	app.Post(constants.FreeTrialRoute, public, h.deps.Onboarding.HandleFreeTrial)
}

func (h ApiRouter) health(c *fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK
	if h.deps.HealthCheck != nil {
		if err := h.deps.HealthCheck(); err != nil {
			log.Errorf("[API] Health check failed: %v", err)
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
