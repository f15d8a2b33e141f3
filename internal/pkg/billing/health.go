package billing

import (
	"time"

	"github.com/rendeza/rendeza/app/models"
)

// Recurring payment health states.
const (
	HealthHealthy = "healthy"
	HealthLate    = "late"
	HealthOverdue = "overdue"
	HealthMissing = "missing"
)

// lateGraceDays is how long a missed charge counts as late before it is overdue.
const lateGraceDays = 7

// PaymentHealthCheck summarizes whether a subscription is being charged on time.
type PaymentHealthCheck struct {
	OrderID              string     `json:"order_id"`
	SubscriptionID       *string    `json:"subscription_id"`
	Status               string     `json:"status"`
	NextChargeDate       *time.Time `json:"next_charge_date"`
	LastPaymentDate      *time.Time `json:"last_payment_date"`
	DaysOverdue          *int       `json:"days_overdue"`
	ExpectedChargeNumber *int       `json:"expected_charge_number"`
	LastChargeNumber     *int       `json:"last_charge_number"`
}

// DaysOverdue returns how many whole days next lies before now, compared by
// calendar date. ok is false when the charge is not overdue.
func DaysOverdue(next *time.Time, now time.Time) (int, bool) {
	if next == nil {
		return 0, false
	}
	due := startOfDay(next.In(now.Location()))
	today := startOfDay(now)
	days := int(today.Sub(due).Hours() / 24)
	if days <= 0 {
		return 0, false
	}
	return days, true
}

// IsPaymentOverdue reports whether the next charge date has passed.
func IsPaymentOverdue(next *time.Time, now time.Time) bool {
	_, overdue := DaysOverdue(next, now)
	return overdue
}

// PaymentHealthStatus classifies a subscription by its next charge date.
func PaymentHealthStatus(next *time.Time, active bool, now time.Time) string {
	if !active || next == nil {
		return HealthMissing
	}
	days, overdue := DaysOverdue(next, now)
	if !overdue {
		return HealthHealthy
	}
	if days > lateGraceDays {
		return HealthOverdue
	}
	return HealthLate
}

// BuildHealthCheck evaluates one order. lastCharge is the highest charge
// number seen in the ledger, if any.
func BuildHealthCheck(order *models.Order, lastCharge *int, now time.Time) PaymentHealthCheck {
	active := order.Status == models.OrderStatusActive
	check := PaymentHealthCheck{
		OrderID:          order.OrderID,
		SubscriptionID:   order.SubscriptionID,
		Status:           PaymentHealthStatus(order.NextChargeDate, active, now),
		NextChargeDate:   order.NextChargeDate,
		LastPaymentDate:  order.LastPaymentDate,
		LastChargeNumber: lastCharge,
	}
	if days, overdue := DaysOverdue(order.NextChargeDate, now); overdue {
		check.DaysOverdue = &days
	}
	if lastCharge != nil {
		expected := *lastCharge + 1
		check.ExpectedChargeNumber = &expected
	}
	return check
}
