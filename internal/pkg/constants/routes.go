package constants

// Route constants shared by the router and the URLs handed to the payment provider.
const (
	APIPrefix = "/api"

	CreatePaymentRoute = "/api/allpay/create-payment"
	WebhookRoute       = "/api/allpay/webhook"
	VerifyPaymentRoute = "/api/payment/verify"
	OnboardingRoute    = "/api/onboarding"
	ContactRoute       = "/api/contact"
	FreeTrialRoute     = "/api/free-trial"
	HealthRoute        = "/api/health"

	AdminPaymentHealthRoute = "/api/admin/payment-health"

	// Browser pages served by the frontend.
	PaymentSuccessPage = "/payment/success"
)
