package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rendeza/rendeza/app/models"
)

// RedirectActivationWindow bounds how long after creation an order may still
// be activated by the browser redirect.
const RedirectActivationWindow = 24 * time.Hour

// PaymentConfirmer decides whether a success redirect may activate an order.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, order *models.Order) (bool, error)
}

// TrustRedirect accepts the redirect itself as proof of payment: the provider
// only sends the browser to the success URL after a successful charge. It does
// not contact the provider.
type TrustRedirect struct{}

func (TrustRedirect) ConfirmPayment(context.Context, *models.Order) (bool, error) {
	return true, nil
}

// Service applies provider signals to orders and the payment ledger.
type Service struct {
	repo      Repository
	confirmer PaymentConfirmer
	now       func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		confirmer: TrustRedirect{},
		now:       time.Now,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// WithConfirmer replaces the redirect trust decision.
func (s *Service) WithConfirmer(c PaymentConfirmer) *Service {
	if c != nil {
		s.confirmer = c
	}
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// ApplyNotification records a verified notification in the ledger and
// transitions the order it refers to.
//
// The ledger row is written first and a failure there does not stop the order
// transition. Errors come back in the result; nothing is retried here.
func (s *Service) ApplyNotification(ctx context.Context, f WebhookFields, payload []byte) ProcessResult {
	result := ProcessResult{}

	payment := &models.Payment{
		OrderID:       f.OrderID,
		TransactionID: f.TransactionID,
		ChargeNumber:  f.ChargeNumber,
		Status:        f.Status,
		Amount:        f.Amount,
		Currency:      f.Currency,
		IsRecurring:   f.IsRecurring,
		WebhookData:   datatypes.JSON(payload),
	}
	if payment.TransactionID == "" {
		payment.TransactionID = "synth:" + uuid.New().String()
	}
	if f.SubscriptionID != "" {
		sub := f.SubscriptionID
		payment.SubscriptionID = &sub
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		result.PaymentErr = fmt.Errorf("create payment for order %s: %w", f.OrderID, err)
		log.Errorf("[Billing] %v", result.PaymentErr)
	} else {
		result.Payment = &PaymentRecord{ID: payment.ID, TransactionID: payment.TransactionID, Status: payment.Status}
	}

	update, target := s.transition(ctx, f, &result)
	result.TargetStatus = target
	if result.OrderErr != nil || update.IsEmpty() {
		return result
	}

	if err := s.repo.UpdateOrder(ctx, f.OrderID, update); err != nil {
		result.OrderErr = fmt.Errorf("update order %s: %w", f.OrderID, err)
		log.Errorf("[Billing] %v", result.OrderErr)
		return result
	}
	result.OrderUpdated = true
	result.StatusPushed = update.Status != nil

	if f.IsRecurring {
		log.Infof("[Billing] Payment %s for order %s (recurring charge #%s)", f.Status, f.OrderID, chargeLabel(f.ChargeNumber))
	} else {
		log.Infof("[Billing] Payment %s for order %s", f.Status, f.OrderID)
	}
	return result
}

// transition computes the order update for f. The status is only pushed for
// the first charge of a subscription or for one-time payments; later
// recurring charges only re-arm the billing dates.
func (s *Service) transition(ctx context.Context, f WebhookFields, result *ProcessResult) (OrderUpdate, string) {
	var update OrderUpdate
	pushStatus := !f.IsRecurring || f.IsFirstCharge()

	switch {
	case f.IsSuccess() && f.IsRecurring:
		target := models.OrderStatusActive
		order, err := s.repo.FindOrderByOrderID(ctx, f.OrderID)
		if err != nil {
			result.OrderErr = fmt.Errorf("load order %s: %w", f.OrderID, err)
			log.Errorf("[Billing] %v", result.OrderErr)
			return update, target
		}

		today := startOfDay(s.now())
		next := NextChargeDate(today, order.BillingFrequency)
		update.LastPaymentDate = &today
		update.NextChargeDate = &next
		if f.IsFirstCharge() {
			sub := f.SubscriptionID
			update.SubscriptionID = &sub
		}
		if pushStatus {
			update.Status = &target
		}
		return update, target

	case f.IsSuccess():
		target := models.OrderStatusPaid
		update.Status = &target
		return update, target

	case f.IsFailure():
		target := models.OrderStatusFailed
		if pushStatus {
			update.Status = &target
		}
		return update, target
	}

	return update, ""
}

func chargeLabel(n *int) string {
	if n == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *n)
}

// VerifyRedirect activates a pending order after the browser landed on the
// success URL. Orders that are no longer pending are reported as they are.
func (s *Service) VerifyRedirect(ctx context.Context, orderID string) (*RedirectResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrMissingOrderID
	}

	order, err := s.repo.FindOrderByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPending() {
		return &RedirectResult{OrderID: orderID, Status: order.Status, AlreadyProcessed: true}, nil
	}
	if !order.CreatedAt.IsZero() && s.now().Sub(order.CreatedAt) > RedirectActivationWindow {
		return nil, ErrOrderTooOld
	}

	confirmed, err := s.confirmer.ConfirmPayment(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("confirm payment for order %s: %w", orderID, err)
	}
	if !confirmed {
		return nil, ErrPaymentNotConfirmed
	}

	activated, err := s.repo.ActivatePendingOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("activate order %s: %w", orderID, err)
	}
	if !activated {
		// Another writer moved the order between the read and the update.
		current, err := s.repo.FindOrderByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &RedirectResult{OrderID: orderID, Status: current.Status, AlreadyProcessed: true}, nil
	}

	log.Infof("[Billing] Order %s activated via success redirect", orderID)
	return &RedirectResult{OrderID: orderID, Status: models.OrderStatusActive}, nil
}

// RegisterPendingOrder makes sure a checkout has an order row before the
// customer leaves for the hosted payment page. Existing rows are left as they are.
func (s *Service) RegisterPendingOrder(ctx context.Context, d OrderDraft) (bool, error) {
	orderID := strings.TrimSpace(d.OrderID)
	if orderID == "" {
		return false, ErrMissingOrderID
	}

	amount, _ := d.Amount.Float64()
	order := &models.Order{
		OrderID:          orderID,
		Plan:             strings.ToLower(strings.TrimSpace(d.Plan)),
		BillingFrequency: NormalizeBillingFrequency(d.BillingFrequency),
		Amount:           amount,
		Status:           models.OrderStatusPending,
	}
	return s.repo.CreateOrderIfNotExists(ctx, order)
}

// PaymentHealth reports the recurring payment health of every active subscription.
func (s *Service) PaymentHealth(ctx context.Context) ([]PaymentHealthCheck, error) {
	orders, err := s.repo.ListActiveSubscriptionOrders(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID)
	}
	lastCharges, err := s.repo.LastChargeNumbers(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	checks := make([]PaymentHealthCheck, 0, len(orders))
	for i := range orders {
		var last *int
		if n, ok := lastCharges[orders[i].OrderID]; ok {
			last = &n
		}
		checks = append(checks, BuildHealthCheck(&orders[i], last, now))
	}
	return checks, nil
}

// IsNotFound reports whether err means the order does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
