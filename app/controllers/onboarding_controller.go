package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/rendeza/rendeza/internal/pkg/onboarding"
)

// OnboardingController serves the intake form submission.
type OnboardingController struct {
	Onboarding *onboarding.Service
}

func (oc *OnboardingController) HandleSubmit(c *fiber.Ctx) error {
	var submission onboarding.Submission
	if err := c.BodyParser(&submission); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*defaultRequestTimeout)
	defer cancel()

	res, err := oc.Onboarding.Submit(ctx, &submission)
	if err != nil {
		switch {
		case errors.Is(err, onboarding.ErrNumberOfPeopleMissing):
			return jsonError(c, fiber.StatusBadRequest, "Number of people is required for this reservation type")
		case errors.Is(err, onboarding.ErrMissingFields):
			return jsonError(c, fiber.StatusBadRequest, "All required fields must be filled")
		case errors.Is(err, onboarding.ErrMailerNotConfigured):
			log.Errorf("[Onboarding] No mail server configured")
			return jsonError(c, fiber.StatusInternalServerError, "Email service is not configured")
		default:
			log.Errorf("[Onboarding] Submission failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to send email",
				"message": err.Error(),
			})
		}
	}

	return c.JSON(fiber.Map{
		"message": "Form submitted successfully",
		"orderId": res.OrderID,
	})
}

// HandleContact forwards a contact form inquiry to the team.
func (oc *OnboardingController) HandleContact(c *fiber.Ctx) error {
	var msg onboarding.ContactMessage
	if err := c.BodyParser(&msg); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*defaultRequestTimeout)
	defer cancel()

	ref, err := oc.Onboarding.Contact(ctx, &msg)
	if err != nil {
		switch {
		case errors.Is(err, onboarding.ErrContactFieldsMissing):
			return jsonError(c, fiber.StatusBadRequest, "All fields are required")
		case errors.Is(err, onboarding.ErrMailerNotConfigured):
			log.Errorf("[Contact] No mail server configured")
			return jsonError(c, fiber.StatusInternalServerError, "Email service is not configured")
		default:
			log.Errorf("[Contact] Inquiry failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to send email",
				"message": err.Error(),
			})
		}
	}

	return c.JSON(fiber.Map{"message": "Email sent successfully", "id": ref})
}

var trialErrorMessages = []struct {
	err     error
	message string
}{
	{onboarding.ErrMissingFields, "All required fields must be filled"},
	{onboarding.ErrRecurringFieldsMissing, "Frequency, preferred day, and start date are required for recurring bookings"},
	{onboarding.ErrNoDatesSelected, "At least one date must be selected for specific date bookings"},
	{onboarding.ErrDateEntryIncomplete, "Each date must have time and reservation type specified"},
	{onboarding.ErrDateNumberOfPeopleMissing, "Number of people is required for this reservation type on one or more dates"},
	{onboarding.ErrInvalidBookingType, "Invalid booking type"},
	{onboarding.ErrNumberOfPeopleMissing, "Number of people is required for this reservation type"},
}

func trialErrorMessage(err error) string {
	for _, m := range trialErrorMessages {
		if errors.Is(err, m.err) {
			return m.message
		}
	}
	return "All required fields must be filled"
}

// HandleFreeTrial forwards a free trial signup to the team and echoes the
// accepted form.
func (oc *OnboardingController) HandleFreeTrial(c *fiber.Ctx) error {
	var req onboarding.TrialRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*defaultRequestTimeout)
	defer cancel()

	ref, err := oc.Onboarding.FreeTrial(ctx, &req)
	if err != nil {
		if onboarding.IsTrialValidationError(err) {
			return jsonError(c, fiber.StatusBadRequest, trialErrorMessage(err))
		}
		if errors.Is(err, onboarding.ErrMailerNotConfigured) {
			log.Errorf("[FreeTrial] No mail server configured")
			return jsonError(c, fiber.StatusInternalServerError, "Email service is not configured")
		}
		log.Errorf("[FreeTrial] Signup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to send email",
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Form submitted successfully",
		"id":      ref,
		"data":    req,
	})
}
