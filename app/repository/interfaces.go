package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rendeza/rendeza/app/models"
)

// CustomerRepository defines the interface for customer-related database operations
type CustomerRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Customer, error)
	UpsertByEmail(ctx context.Context, customer *models.Customer) error
}

// OrderRepository defines the interface for order-related database operations
type OrderRepository interface {
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	UpdateReservation(ctx context.Context, orderID string, details ReservationDetails) error
}

// ReservationDetails are the intake form fields written onto an existing order.
type ReservationDetails struct {
	CustomerID      uint
	ReservationWith string
	NumberOfPeople  *int
	PreferredDay    string
	PreferredTime   string
	StartDateOption string
	AdditionalInfo  *string
}

// Repositories struct holds all repository instances
type Repositories struct {
	Customer CustomerRepository
	Order    OrderRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Customer: NewCustomerRepository(db),
		Order:    NewOrderRepository(db),
	}
}
