package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rendeza/rendeza/app/models"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// GetByOrderID retrieves an order by its external order id
func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create creates a new order in the database
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// UpdateReservation writes the intake form fields onto an existing order.
// Plan, amount and payment state are left alone.
func (r *orderRepository) UpdateReservation(ctx context.Context, orderID string, details ReservationDetails) error {
	updates := map[string]interface{}{
		"customer_id":       details.CustomerID,
		"reservation_with":  details.ReservationWith,
		"number_of_people":  details.NumberOfPeople,
		"preferred_day":     details.PreferredDay,
		"preferred_time":    details.PreferredTime,
		"start_date_option": details.StartDateOption,
		"additional_info":   details.AdditionalInfo,
	}
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("order_id = ?", orderID).Updates(updates).Error
}
