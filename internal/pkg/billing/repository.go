package billing

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rendeza/rendeza/app/models"
)

// Repository provides DB operations used by the billing service. Every write
// is a single statement keyed by order_id; there is no in-process locking.
type Repository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindOrderByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	CreateOrderIfNotExists(ctx context.Context, order *models.Order) (bool, error)
	UpdateOrder(ctx context.Context, orderID string, update OrderUpdate) error
	ActivatePendingOrder(ctx context.Context, orderID string) (bool, error)
	ListActiveSubscriptionOrders(ctx context.Context) ([]models.Order, error)
	LastChargeNumbers(ctx context.Context, orderIDs []string) (map[string]int, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormRepository) FindOrderByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) CreateOrderIfNotExists(ctx context.Context, order *models.Order) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(order)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// UpdateOrder writes the set fields of update. It returns ErrOrderNotFound when
// no order has orderID.
func (r *gormRepository) UpdateOrder(ctx context.Context, orderID string, update OrderUpdate) error {
	updates := update.columns()
	if len(updates) == 0 {
		return nil
	}
	tx := r.db.WithContext(ctx).Model(&models.Order{}).Where("order_id = ?", orderID).Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		return nil
	}

	// MySQL reports changed rows, so rewriting identical values also affects 0 rows.
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ActivatePendingOrder flips a pending order to active in one conditional
// update and reports whether this call made the transition.
func (r *gormRepository) ActivatePendingOrder(ctx context.Context, orderID string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_id = ? AND (status = ? OR status = ?)", orderID, models.OrderStatusPending, "").
		Update("status", models.OrderStatusActive)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListActiveSubscriptionOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND subscription_id IS NOT NULL", models.OrderStatusActive).
		Order("next_charge_date ASC").
		Find(&orders).Error
	return orders, err
}

func (r *gormRepository) LastChargeNumbers(ctx context.Context, orderIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		OrderID      string
		ChargeNumber int
	}
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("order_id, MAX(charge_number) AS charge_number").
		Where("order_id IN ? AND charge_number IS NOT NULL", orderIDs).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OrderID] = row.ChargeNumber
	}
	return out, nil
}
