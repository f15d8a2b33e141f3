package models

import (
	"time"

	"gorm.io/datatypes"
)

// Payment is one accepted provider notification. Rows are append-only and are
// only written after the notification signature has been verified.
type Payment struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OrderID        string         `gorm:"type:varchar(100);not null;index" json:"order_id"`
	TransactionID  string         `gorm:"type:varchar(191);not null;index" json:"transaction_id"`
	SubscriptionID *string        `gorm:"type:varchar(100);default:null;index" json:"subscription_id,omitempty"`
	ChargeNumber   *int           `gorm:"default:null" json:"charge_number,omitempty"`
	Status         string         `gorm:"type:varchar(32);not null" json:"status"`
	Amount         *float64       `gorm:"type:decimal(10,2);default:null" json:"amount,omitempty"`
	Currency       string         `gorm:"type:varchar(8);not null;default:'ILS'" json:"currency"`
	IsRecurring    bool           `gorm:"default:false" json:"is_recurring"`
	WebhookData    datatypes.JSON `gorm:"type:json" json:"webhook_data"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}
