package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Customer is the contact record behind one or more orders. Email is the
// natural key used for create-or-update on every onboarding submission.
type Customer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FirstName   string    `gorm:"type:varchar(100);not null" json:"first_name" validate:"required,max=100"`
	LastName    string    `gorm:"type:varchar(100);not null" json:"last_name" validate:"required,max=100"`
	Email       string    `gorm:"type:varchar(200);not null;uniqueIndex" json:"email" validate:"required,email,max=200"`
	PhoneNumber string    `gorm:"type:varchar(50);default:null" json:"phone_number,omitempty" validate:"max=50"`
	Address     string    `gorm:"type:varchar(255);default:null" json:"address,omitempty" validate:"max=255"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Customer) Validate() error {
	v := validator.New()

	return v.Struct(c)
}
