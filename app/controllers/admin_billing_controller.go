package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/rendeza/rendeza/internal/pkg/billing"
	"github.com/rendeza/rendeza/internal/pkg/metrics/counter"
)

// AdminBillingController exposes recurring payment health to operators.
type AdminBillingController struct {
	Billing  *billing.Service
	Counters *counter.WebhookCounters
}

// HandlePaymentHealth lists every active subscription with its health and
// the webhook outcome counters.
func (ac *AdminBillingController) HandlePaymentHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), defaultRequestTimeout)
	defer cancel()

	checks, err := ac.Billing.PaymentHealth(ctx)
	if err != nil {
		log.Errorf("[Admin] Payment health failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
	}

	summary := map[string]int{
		billing.HealthHealthy: 0,
		billing.HealthLate:    0,
		billing.HealthOverdue: 0,
		billing.HealthMissing: 0,
	}
	for _, check := range checks {
		summary[check.Status]++
	}

	webhooks, err := ac.Counters.Snapshot(ctx)
	if err != nil {
		log.Warnf("[Admin] Could not read webhook counters: %v", err)
		webhooks = map[string]int64{}
	}

	return c.JSON(fiber.Map{
		"generated_at":  time.Now().UTC().Format(time.RFC3339),
		"summary":       summary,
		"subscriptions": checks,
		"webhooks":      webhooks,
	})
}
