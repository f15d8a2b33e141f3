package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/rendeza/rendeza/app/models"
)

// customerRepository implements the CustomerRepository interface
type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository instance
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// GetByEmail retrieves a customer by their email address
func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("email = ?", strings.TrimSpace(email)).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpsertByEmail creates the customer or refreshes the contact details of the
// existing row with the same email. customer.ID is set either way.
func (r *customerRepository) UpsertByEmail(ctx context.Context, customer *models.Customer) error {
	customer.Email = strings.TrimSpace(customer.Email)

	existing, err := r.GetByEmail(ctx, customer.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(customer).Error
		}
		return err
	}

	err = r.db.WithContext(ctx).Model(existing).Updates(map[string]interface{}{
		"first_name":   customer.FirstName,
		"last_name":    customer.LastName,
		"phone_number": customer.PhoneNumber,
		"address":      customer.Address,
	}).Error
	if err != nil {
		return err
	}

	customer.ID = existing.ID
	customer.CreatedAt = existing.CreatedAt
	return nil
}
