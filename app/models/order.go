package models

import "time"

const (
	OrderStatusPending = "pending"
	OrderStatusActive  = "active"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

const (
	PlanWeekly   = "weekly"
	PlanBiweekly = "biweekly"
	PlanBusiness = "business"
)

const (
	BillingFrequencyMonthly = "monthly"
	BillingFrequencyAnnual  = "annual"
)

// Order is a customer's subscription intent. OrderID is generated by the
// caller and stays stable across payment creation, webhooks and the
// redirect verification call.
type Order struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	OrderID          string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"order_id"`
	CustomerID       *uint      `gorm:"index;default:null" json:"customer_id,omitempty"`
	Customer         *Customer  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Plan             string     `gorm:"type:varchar(20);not null" json:"plan"`
	BillingFrequency string     `gorm:"type:varchar(20);not null;default:'monthly'" json:"billing_frequency"`
	Amount           float64    `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SubscriptionID   *string    `gorm:"type:varchar(100);default:null;index" json:"subscription_id,omitempty"`
	NextChargeDate   *time.Time `gorm:"type:date;default:null" json:"next_charge_date,omitempty"`
	LastPaymentDate  *time.Time `gorm:"type:date;default:null" json:"last_payment_date,omitempty"`
	ReservationWith  string     `gorm:"type:varchar(50);default:null" json:"reservation_with,omitempty"`
	NumberOfPeople   *int       `gorm:"default:null" json:"number_of_people,omitempty"`
	PreferredDay     string     `gorm:"type:varchar(20);default:null" json:"preferred_day,omitempty"`
	PreferredTime    string     `gorm:"type:varchar(20);default:null" json:"preferred_time,omitempty"`
	StartDateOption  string     `gorm:"type:varchar(20);default:null" json:"start_date_option,omitempty"`
	AdditionalInfo   *string    `gorm:"type:text" json:"additional_info,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPending reports whether the order still awaits its first payment signal.
// An empty status is treated as pending, matching rows created without one.
func (o *Order) IsPending() bool {
	return o.Status == "" || o.Status == OrderStatusPending
}

// IsAnnual reports whether the order bills yearly. Anything else bills monthly.
func (o *Order) IsAnnual() bool {
	return o.BillingFrequency == BillingFrequencyAnnual
}
