package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequest carries the order and customer data needed to open a hosted
// payment session.
type PaymentRequest struct {
	OrderID          string
	Plan             string
	BillingFrequency string
	FirstName        string
	LastName         string
	Email            string
	PhoneNumber      string
	Amount           decimal.Decimal
}

// Validate checks the fields the provider cannot work without.
func (r PaymentRequest) Validate() error {
	if strings.TrimSpace(r.OrderID) == "" ||
		strings.TrimSpace(r.Plan) == "" ||
		strings.TrimSpace(r.Email) == "" ||
		r.Amount.IsZero() {
		return ErrMissingPaymentFields
	}
	return nil
}

// ClientName is the display name sent to the provider.
func (r PaymentRequest) ClientName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// PaymentSession is the provider-hosted page the customer is redirected to.
type PaymentSession struct {
	OrderID    string
	PaymentURL string
}

// WebhookFields are the business fields extracted from a verified notification.
type WebhookFields struct {
	OrderID        string
	StatusCode     *int
	Status         string
	TransactionID  string
	SubscriptionID string
	ChargeNumber   *int
	Amount         *float64
	Currency       string
	IsRecurring    bool
}

// IsSuccess reports a successful charge.
func (f WebhookFields) IsSuccess() bool {
	if f.StatusCode != nil && *f.StatusCode == 1 {
		return true
	}
	switch f.Status {
	case PaymentStatusSuccess, "approved", "completed":
		return true
	}
	return false
}

// IsFailure reports an unpaid, rejected or cancelled charge.
func (f WebhookFields) IsFailure() bool {
	if f.StatusCode != nil && *f.StatusCode == 0 {
		return true
	}
	switch f.Status {
	case PaymentStatusFailed, "rejected", "cancelled":
		return true
	}
	return false
}

// IsFirstCharge is true for charge #1 and for notifications without a charge
// number, which are the first and only known charge.
func (f WebhookFields) IsFirstCharge() bool {
	return f.ChargeNumber == nil || *f.ChargeNumber == 1
}

// OrderUpdate lists the order columns a transition writes. Nil fields are left untouched.
type OrderUpdate struct {
	Status          *string
	SubscriptionID  *string
	LastPaymentDate *time.Time
	NextChargeDate  *time.Time
}

func (u OrderUpdate) columns() map[string]interface{} {
	updates := make(map[string]interface{}, 4)
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.SubscriptionID != nil {
		updates["subscription_id"] = *u.SubscriptionID
	}
	if u.LastPaymentDate != nil {
		updates["last_payment_date"] = *u.LastPaymentDate
	}
	if u.NextChargeDate != nil {
		updates["next_charge_date"] = *u.NextChargeDate
	}
	return updates
}

// IsEmpty reports whether the update would not change anything.
func (u OrderUpdate) IsEmpty() bool {
	return len(u.columns()) == 0
}

// OrderDraft is the checkout data used to register a pending order.
type OrderDraft struct {
	OrderID          string
	Plan             string
	BillingFrequency string
	Amount           decimal.Decimal
}

// ProcessResult reports what a notification changed. Persistence errors are
// kept as values so the caller decides how to answer the provider.
type ProcessResult struct {
	Payment      *PaymentRecord
	PaymentErr   error
	TargetStatus string
	StatusPushed bool
	OrderUpdated bool
	OrderErr     error
}

// PaymentRecord is the subset of the stored ledger row reported back to callers.
type PaymentRecord struct {
	ID            uint
	TransactionID string
	Status        string
}

// Err returns the first persistence error, if any.
func (r ProcessResult) Err() error {
	if r.PaymentErr != nil {
		return r.PaymentErr
	}
	return r.OrderErr
}

// RedirectResult is the outcome of a redirect-path verification.
type RedirectResult struct {
	OrderID          string
	Status           string
	AlreadyProcessed bool
}
