package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/rendeza/rendeza/internal/pkg/billing"
	"github.com/rendeza/rendeza/internal/pkg/metrics/counter"
	"github.com/rendeza/rendeza/internal/pkg/s3archive"
)

const defaultRequestTimeout = 10 * time.Second

// PaymentController serves the Allpay checkout, webhook and redirect
// verification endpoints.
type PaymentController struct {
	Allpay   *billing.Client
	Billing  *billing.Service
	Archive  s3archive.Archiver
	Counters *counter.WebhookCounters
	Timeout  time.Duration
}

func (pc *PaymentController) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.UserContext(), timeout)
}

type createPaymentBody struct {
	OrderID          string          `json:"orderId"`
	Plan             string          `json:"plan"`
	BillingFrequency string          `json:"billingFrequency"`
	FirstName        string          `json:"firstName"`
	LastName         string          `json:"lastName"`
	Email            string          `json:"email"`
	PhoneNumber      string          `json:"phoneNumber"`
	Amount           decimal.Decimal `json:"amount"`
}

func (b createPaymentBody) paymentRequest() billing.PaymentRequest {
	return billing.PaymentRequest{
		OrderID:          strings.TrimSpace(b.OrderID),
		Plan:             strings.TrimSpace(b.Plan),
		BillingFrequency: strings.TrimSpace(b.BillingFrequency),
		FirstName:        strings.TrimSpace(b.FirstName),
		LastName:         strings.TrimSpace(b.LastName),
		Email:            strings.TrimSpace(b.Email),
		PhoneNumber:      strings.TrimSpace(b.PhoneNumber),
		Amount:           b.Amount,
	}
}

// HandleCreatePayment opens a hosted payment session for a checkout.
func (pc *PaymentController) HandleCreatePayment(c *fiber.Ctx) error {
	var body createPaymentBody
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req := body.paymentRequest()
	if err := req.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Missing required payment fields")
	}
	if !pc.Allpay.Configured() {
		log.Errorf("[Allpay] Credentials are not configured, cannot create payment for order %s", req.OrderID)
		return jsonError(c, fiber.StatusServiceUnavailable, "Payment service is not configured")
	}

	ctx, cancel := pc.requestContext(c)
	defer cancel()

	if _, err := pc.Billing.RegisterPendingOrder(ctx, billing.OrderDraft{
		OrderID:          req.OrderID,
		Plan:             req.Plan,
		BillingFrequency: req.BillingFrequency,
		Amount:           req.Amount,
	}); err != nil {
		log.Errorf("[Allpay] Could not register pending order %s (continuing): %v", req.OrderID, err)
	}

	session, err := pc.Allpay.CreatePayment(ctx, req)
	if err != nil {
		var perr *billing.ProviderError
		switch {
		case errors.As(err, &perr):
			log.Errorf("[Allpay] Provider rejected order %s: %v", req.OrderID, perr)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":          "Failed to create payment",
				"details":        perr.Body,
				"providerStatus": perr.StatusCode,
			})
		case errors.Is(err, billing.ErrProviderNotConfigured):
			return jsonError(c, fiber.StatusServiceUnavailable, "Payment service is not configured")
		default:
			log.Errorf("[Allpay] Payment creation for order %s failed: %v", req.OrderID, err)
			return jsonError(c, fiber.StatusBadGateway, "Failed to create payment")
		}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"paymentUrl": session.PaymentURL,
		"orderId":    session.OrderID,
	})
}

// HandleWebhook ingests a provider notification. Only an unverifiable
// delivery is refused; everything else is acknowledged so the provider does
// not retry on local persistence problems.
func (pc *PaymentController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	contentType := c.Get(fiber.HeaderContentType)

	ctx, cancel := pc.requestContext(c)
	defer cancel()

	n, err := billing.ParseNotification(contentType, rawBody)
	if err != nil {
		log.Warnf("[Webhook] Unparseable notification (%s): %v", contentType, err)
		pc.record(ctx, c, counter.OutcomeUnparseable, "", contentType, rawBody)
		return jsonError(c, fiber.StatusUnauthorized, "Invalid payload")
	}

	if err := pc.Allpay.VerifyNotification(n); err != nil {
		if errors.Is(err, billing.ErrProviderNotConfigured) {
			log.Errorf("[Webhook] API key is not configured, cannot verify notifications")
			pc.record(ctx, c, counter.OutcomeUnconfigured, "", contentType, rawBody)
			return jsonError(c, fiber.StatusInternalServerError, "Webhook not configured")
		}
		log.Warnf("[Webhook] Invalid signature (%s): received=%s expected=%s params=%v",
			n.Kind, n.Signature(), pc.Allpay.ExpectedSignature(n), n.ParamsWithoutSign())
		orderID, _ := billing.LookupField(n.Params, billing.FieldOrderID)
		pc.record(ctx, c, counter.OutcomeInvalidSign, orderID, contentType, rawBody)
		return jsonError(c, fiber.StatusUnauthorized, "Invalid signature")
	}

	fields := billing.ExtractFields(n, pc.Allpay.Currency())
	if fields.OrderID == "" {
		log.Warnf("[Webhook] Verified notification without order_id, ignoring: %v", n.ParamsWithoutSign())
		pc.record(ctx, c, counter.OutcomeMissingOrder, "", contentType, rawBody)
		return c.JSON(fiber.Map{"status": "ok"})
	}

	log.Infof("[Webhook] Notification for order %s: status=%s recurring=%t", fields.OrderID, fields.Status, fields.IsRecurring)
	result := pc.Billing.ApplyNotification(ctx, fields, n.PayloadJSON())
	if err := result.Err(); err != nil {
		// acknowledged anyway: a provider retry would not fix a local outage
		log.Errorf("[Webhook] Order %s not fully processed: %v", fields.OrderID, err)
		outcome := counter.OutcomePersistFailed
		if result.PaymentErr == nil && billing.IsNotFound(result.OrderErr) {
			outcome = counter.OutcomeUnknownOrder
		}
		pc.record(ctx, c, outcome, fields.OrderID, contentType, rawBody)
		return c.JSON(fiber.Map{"status": "ok"})
	}

	pc.record(ctx, c, counter.OutcomeAccepted, fields.OrderID, contentType, rawBody)
	return c.JSON(fiber.Map{"status": "ok"})
}

// record counts the outcome and archives the delivery. Both are best effort.
func (pc *PaymentController) record(ctx context.Context, c *fiber.Ctx, outcome, orderID, contentType string, body []byte) {
	if err := pc.Counters.Add(ctx, outcome); err != nil {
		log.Warnf("[Webhook] Could not count outcome %s: %v", outcome, err)
	}
	if pc.Archive == nil {
		return
	}
	err := pc.Archive.Archive(ctx, s3archive.Delivery{
		ReceivedAt:  time.Now().UTC(),
		Outcome:     outcome,
		OrderID:     orderID,
		ContentType: contentType,
		RemoteIP:    clientIP(c),
		Body:        string(body),
	})
	if err != nil {
		log.Warnf("[Webhook] Could not archive delivery: %v", err)
	}
}

// HandleWebhookStatus answers GET liveness checks on the webhook route.
func (pc *PaymentController) HandleWebhookStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":   "Webhook endpoint is accessible",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type verifyPaymentBody struct {
	OrderID string `json:"orderId"`
}

// HandleVerifyPayment activates a pending order after the success redirect.
func (pc *PaymentController) HandleVerifyPayment(c *fiber.Ctx) error {
	var body verifyPaymentBody
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := pc.requestContext(c)
	defer cancel()

	res, err := pc.Billing.VerifyRedirect(ctx, body.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrMissingOrderID):
			return jsonError(c, fiber.StatusBadRequest, "Order ID is required")
		case billing.IsNotFound(err):
			return jsonError(c, fiber.StatusNotFound, "Order not found")
		case errors.Is(err, billing.ErrOrderTooOld):
			return jsonError(c, fiber.StatusBadRequest, "Order is too old to activate via redirect")
		case errors.Is(err, billing.ErrPaymentNotConfirmed):
			return jsonError(c, fiber.StatusPaymentRequired, "Payment could not be confirmed")
		default:
			log.Errorf("[Billing] Verifying order %s failed: %v", body.OrderID, err)
			return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
		}
	}

	resp := fiber.Map{
		"success": true,
		"orderId": res.OrderID,
		"status":  res.Status,
	}
	if res.AlreadyProcessed {
		resp["message"] = "Order is already " + res.Status
	}
	return c.JSON(resp)
}
