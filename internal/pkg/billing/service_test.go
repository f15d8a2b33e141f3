package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendeza/rendeza/app/models"
)

type fakeRepository struct {
	orders   map[string]*models.Order
	payments []models.Payment
	charges  map[string]int

	createPaymentErr error
	updateOrderErr   error
	activateErr      error
	stealActivation  string
	updates          []OrderUpdate
}

func newFakeRepository(orders ...*models.Order) *fakeRepository {
	r := &fakeRepository{orders: map[string]*models.Order{}, charges: map[string]int{}}
	for _, o := range orders {
		r.orders[o.OrderID] = o
	}
	return r
}

func (r *fakeRepository) CreatePayment(_ context.Context, p *models.Payment) error {
	if r.createPaymentErr != nil {
		return r.createPaymentErr
	}
	p.ID = uint(len(r.payments) + 1)
	r.payments = append(r.payments, *p)
	return nil
}

func (r *fakeRepository) FindOrderByOrderID(_ context.Context, orderID string) (*models.Order, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepository) CreateOrderIfNotExists(_ context.Context, order *models.Order) (bool, error) {
	if _, ok := r.orders[order.OrderID]; ok {
		return false, nil
	}
	r.orders[order.OrderID] = order
	return true, nil
}

func (r *fakeRepository) UpdateOrder(_ context.Context, orderID string, u OrderUpdate) error {
	if r.updateOrderErr != nil {
		return r.updateOrderErr
	}
	r.updates = append(r.updates, u)
	o, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.SubscriptionID != nil {
		sub := *u.SubscriptionID
		o.SubscriptionID = &sub
	}
	if u.LastPaymentDate != nil {
		d := *u.LastPaymentDate
		o.LastPaymentDate = &d
	}
	if u.NextChargeDate != nil {
		d := *u.NextChargeDate
		o.NextChargeDate = &d
	}
	return nil
}

func (r *fakeRepository) ActivatePendingOrder(_ context.Context, orderID string) (bool, error) {
	if r.activateErr != nil {
		return false, r.activateErr
	}
	o, ok := r.orders[orderID]
	if !ok {
		return false, nil
	}
	if r.stealActivation != "" {
		o.Status = r.stealActivation
		return false, nil
	}
	if !o.IsPending() {
		return false, nil
	}
	o.Status = models.OrderStatusActive
	return true, nil
}

func (r *fakeRepository) ListActiveSubscriptionOrders(context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.orders {
		if o.Status == models.OrderStatusActive && o.SubscriptionID != nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeRepository) LastChargeNumbers(_ context.Context, orderIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range orderIDs {
		if n, ok := r.charges[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

var fixedNow = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	return NewService(repo).WithClock(func() time.Time { return fixedNow })
}

func intPtr(n int) *int { return &n }

func pendingOrder(orderID, frequency string) *models.Order {
	return &models.Order{
		OrderID:          orderID,
		Plan:             models.PlanWeekly,
		BillingFrequency: frequency,
		Amount:           39,
		Status:           models.OrderStatusPending,
		CreatedAt:        fixedNow.Add(-time.Hour),
	}
}

func TestApplyNotificationFirstRecurringCharge(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
	svc := newTestService(repo)

	amount := 39.0
	res := svc.ApplyNotification(context.Background(), WebhookFields{
		OrderID:        "ORDER-1",
		StatusCode:     intPtr(1),
		Status:         PaymentStatusSuccess,
		TransactionID:  "TX-1",
		SubscriptionID: "SUB-1",
		Amount:         &amount,
		Currency:       "ILS",
		IsRecurring:    true,
	}, []byte(`{"order_id":"ORDER-1"}`))

	require.NoError(t, res.Err())
	assert.True(t, res.OrderUpdated)
	assert.True(t, res.StatusPushed)
	assert.Equal(t, models.OrderStatusActive, res.TargetStatus)
	require.NotNil(t, res.Payment)
	assert.Equal(t, "TX-1", res.Payment.TransactionID)

	require.Len(t, repo.payments, 1)
	p := repo.payments[0]
	assert.Equal(t, "ORDER-1", p.OrderID)
	assert.Equal(t, PaymentStatusSuccess, p.Status)
	assert.True(t, p.IsRecurring)
	require.NotNil(t, p.SubscriptionID)
	assert.Equal(t, "SUB-1", *p.SubscriptionID)
	assert.JSONEq(t, `{"order_id":"ORDER-1"}`, string(p.WebhookData))

	o := repo.orders["ORDER-1"]
	assert.Equal(t, models.OrderStatusActive, o.Status)
	require.NotNil(t, o.SubscriptionID)
	assert.Equal(t, "SUB-1", *o.SubscriptionID)
	require.NotNil(t, o.LastPaymentDate)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *o.LastPaymentDate)
	require.NotNil(t, o.NextChargeDate)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), *o.NextChargeDate)
}

func TestApplyNotificationAnnualNextCharge(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-A", models.BillingFrequencyAnnual))
	svc := newTestService(repo)

	res := svc.ApplyNotification(context.Background(), WebhookFields{
		OrderID:        "ORDER-A",
		StatusCode:     intPtr(1),
		Status:         PaymentStatusSuccess,
		SubscriptionID: "SUB-A",
		ChargeNumber:   intPtr(1),
		IsRecurring:    true,
	}, nil)

	require.NoError(t, res.Err())
	o := repo.orders["ORDER-A"]
	require.NotNil(t, o.NextChargeDate)
	assert.Equal(t, time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC), *o.NextChargeDate)
}

func TestApplyNotificationLaterChargeKeepsStatus(t *testing.T) {
	order := pendingOrder("ORDER-1", models.BillingFrequencyMonthly)
	order.Status = models.OrderStatusFailed
	sub := "SUB-1"
	order.SubscriptionID = &sub
	repo := newFakeRepository(order)
	svc := newTestService(repo)

	res := svc.ApplyNotification(context.Background(), WebhookFields{
		OrderID:        "ORDER-1",
		StatusCode:     intPtr(1),
		Status:         PaymentStatusSuccess,
		TransactionID:  "TX-2",
		SubscriptionID: "SUB-OTHER",
		ChargeNumber:   intPtr(2),
		IsRecurring:    true,
	}, nil)

	require.NoError(t, res.Err())
	assert.True(t, res.OrderUpdated)
	assert.False(t, res.StatusPushed)

	o := repo.orders["ORDER-1"]
	assert.Equal(t, models.OrderStatusFailed, o.Status)
	assert.Equal(t, "SUB-1", *o.SubscriptionID, "subscription id is only set by the first charge")
	require.NotNil(t, o.NextChargeDate)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), *o.NextChargeDate)
}

func TestApplyNotificationOneTimeSuccessMarksPaid(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
	svc := newTestService(repo)

	res := svc.ApplyNotification(context.Background(), WebhookFields{
		OrderID:    "ORDER-1",
		StatusCode: intPtr(1),
		Status:     PaymentStatusSuccess,
	}, nil)

	require.NoError(t, res.Err())
	assert.Equal(t, models.OrderStatusPaid, repo.orders["ORDER-1"].Status)
	assert.Nil(t, repo.orders["ORDER-1"].NextChargeDate)

	require.Len(t, repo.payments, 1)
	assert.True(t, strings.HasPrefix(repo.payments[0].TransactionID, "synth:"))
	assert.False(t, repo.payments[0].IsRecurring)
}

func TestApplyNotificationFailure(t *testing.T) {
	t.Run("first charge marks failed", func(t *testing.T) {
		repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
		res := newTestService(repo).ApplyNotification(context.Background(), WebhookFields{
			OrderID:        "ORDER-1",
			StatusCode:     intPtr(0),
			Status:         PaymentStatusFailed,
			SubscriptionID: "SUB-1",
			IsRecurring:    true,
		}, nil)

		require.NoError(t, res.Err())
		assert.True(t, res.StatusPushed)
		assert.Equal(t, models.OrderStatusFailed, repo.orders["ORDER-1"].Status)
	})

	t.Run("later charge leaves order alone", func(t *testing.T) {
		order := pendingOrder("ORDER-1", models.BillingFrequencyMonthly)
		order.Status = models.OrderStatusActive
		repo := newFakeRepository(order)
		res := newTestService(repo).ApplyNotification(context.Background(), WebhookFields{
			OrderID:        "ORDER-1",
			StatusCode:     intPtr(0),
			Status:         PaymentStatusFailed,
			SubscriptionID: "SUB-1",
			ChargeNumber:   intPtr(3),
			IsRecurring:    true,
		}, nil)

		require.NoError(t, res.Err())
		assert.False(t, res.OrderUpdated)
		assert.Equal(t, models.OrderStatusFailed, res.TargetStatus)
		assert.Equal(t, models.OrderStatusActive, repo.orders["ORDER-1"].Status)
		assert.Len(t, repo.payments, 1, "the ledger still records the failed charge")
	})
}

func TestApplyNotificationPendingStatusOnlyRecordsPayment(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
	res := newTestService(repo).ApplyNotification(context.Background(), WebhookFields{
		OrderID: "ORDER-1",
		Status:  PaymentStatusPending,
	}, nil)

	require.NoError(t, res.Err())
	assert.Empty(t, res.TargetStatus)
	assert.False(t, res.OrderUpdated)
	assert.Empty(t, repo.updates)
	assert.Len(t, repo.payments, 1)
}

func TestApplyNotificationPaymentErrorDoesNotBlockOrder(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
	repo.createPaymentErr = errors.New("insert failed")

	res := newTestService(repo).ApplyNotification(context.Background(), WebhookFields{
		OrderID:    "ORDER-1",
		StatusCode: intPtr(1),
		Status:     PaymentStatusSuccess,
	}, nil)

	require.Error(t, res.PaymentErr)
	assert.Nil(t, res.Payment)
	assert.NoError(t, res.OrderErr)
	assert.True(t, res.OrderUpdated)
	assert.Equal(t, models.OrderStatusPaid, repo.orders["ORDER-1"].Status)
	assert.ErrorContains(t, res.Err(), "insert failed")
}

func TestApplyNotificationUnknownOrder(t *testing.T) {
	repo := newFakeRepository()
	res := newTestService(repo).ApplyNotification(context.Background(), WebhookFields{
		OrderID:        "MISSING",
		StatusCode:     intPtr(1),
		Status:         PaymentStatusSuccess,
		SubscriptionID: "SUB-1",
		IsRecurring:    true,
	}, nil)

	assert.NoError(t, res.PaymentErr)
	require.Error(t, res.OrderErr)
	assert.True(t, IsNotFound(res.OrderErr))
	assert.False(t, res.OrderUpdated)
}

func TestApplyNotificationOneTimeUnknownOrder(t *testing.T) {
	repo := newFakeRepository()
	res := newTestService(repo).ApplyNotification(context.Background(), WebhookFields{
		OrderID:    "MISSING",
		StatusCode: intPtr(1),
		Status:     PaymentStatusSuccess,
	}, nil)

	assert.NoError(t, res.PaymentErr)
	require.Error(t, res.OrderErr)
	assert.True(t, IsNotFound(res.OrderErr))
	assert.False(t, res.OrderUpdated)
	assert.Len(t, repo.payments, 1)
}

func TestApplyNotificationUpdateError(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
	repo.updateOrderErr = errors.New("deadlock")

	res := newTestService(repo).ApplyNotification(context.Background(), WebhookFields{
		OrderID:    "ORDER-1",
		StatusCode: intPtr(1),
		Status:     PaymentStatusSuccess,
	}, nil)

	assert.ErrorContains(t, res.OrderErr, "deadlock")
	assert.False(t, res.OrderUpdated)
}

func TestVerifyRedirectActivatesPendingOrder(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
	svc := newTestService(repo)

	res, err := svc.VerifyRedirect(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusActive, res.Status)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, models.OrderStatusActive, repo.orders["ORDER-1"].Status)

	again, err := svc.VerifyRedirect(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, models.OrderStatusActive, again.Status)
}

func TestVerifyRedirectEmptyStatusCountsAsPending(t *testing.T) {
	order := pendingOrder("ORDER-1", models.BillingFrequencyMonthly)
	order.Status = ""
	repo := newFakeRepository(order)

	res, err := newTestService(repo).VerifyRedirect(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, models.OrderStatusActive, repo.orders["ORDER-1"].Status)
}

func TestVerifyRedirectDoesNotTouchSettledOrders(t *testing.T) {
	for _, status := range []string{models.OrderStatusFailed, models.OrderStatusPaid} {
		order := pendingOrder("ORDER-1", models.BillingFrequencyMonthly)
		order.Status = status
		repo := newFakeRepository(order)

		res, err := newTestService(repo).VerifyRedirect(context.Background(), "ORDER-1")
		require.NoError(t, err)
		assert.True(t, res.AlreadyProcessed)
		assert.Equal(t, status, res.Status)
		assert.Equal(t, status, repo.orders["ORDER-1"].Status)
	}
}

func TestVerifyRedirectErrors(t *testing.T) {
	svc := newTestService(newFakeRepository())

	_, err := svc.VerifyRedirect(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingOrderID)

	_, err = svc.VerifyRedirect(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	stale := pendingOrder("OLD", models.BillingFrequencyMonthly)
	stale.CreatedAt = fixedNow.Add(-RedirectActivationWindow - time.Minute)
	repo := newFakeRepository(stale)
	_, err = newTestService(repo).VerifyRedirect(context.Background(), "OLD")
	assert.ErrorIs(t, err, ErrOrderTooOld)
	assert.Equal(t, models.OrderStatusPending, repo.orders["OLD"].Status)
}

type rejectConfirmer struct{ err error }

func (r rejectConfirmer) ConfirmPayment(context.Context, *models.Order) (bool, error) {
	return false, r.err
}

func TestVerifyRedirectConfirmer(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
	svc := newTestService(repo).WithConfirmer(rejectConfirmer{})

	_, err := svc.VerifyRedirect(context.Background(), "ORDER-1")
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)
	assert.Equal(t, models.OrderStatusPending, repo.orders["ORDER-1"].Status)

	svc.WithConfirmer(rejectConfirmer{err: errors.New("provider down")})
	_, err = svc.VerifyRedirect(context.Background(), "ORDER-1")
	assert.ErrorContains(t, err, "provider down")
}

func TestVerifyRedirectLostRace(t *testing.T) {
	repo := newFakeRepository(pendingOrder("ORDER-1", models.BillingFrequencyMonthly))
	repo.stealActivation = models.OrderStatusFailed

	res, err := newTestService(repo).VerifyRedirect(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, models.OrderStatusFailed, res.Status)
}

func TestRegisterPendingOrder(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	created, err := svc.RegisterPendingOrder(context.Background(), OrderDraft{
		OrderID:          "ORDER-1",
		Plan:             "Weekly",
		BillingFrequency: "ANNUAL",
		Amount:           decimal.NewFromInt(390),
	})
	require.NoError(t, err)
	assert.True(t, created)

	o := repo.orders["ORDER-1"]
	assert.Equal(t, models.PlanWeekly, o.Plan)
	assert.Equal(t, models.BillingFrequencyAnnual, o.BillingFrequency)
	assert.Equal(t, 390.0, o.Amount)
	assert.Equal(t, models.OrderStatusPending, o.Status)

	created, err = svc.RegisterPendingOrder(context.Background(), OrderDraft{OrderID: "ORDER-1", Plan: "biweekly"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.PlanWeekly, repo.orders["ORDER-1"].Plan)

	_, err = svc.RegisterPendingOrder(context.Background(), OrderDraft{})
	assert.ErrorIs(t, err, ErrMissingOrderID)
}

func TestPaymentHealth(t *testing.T) {
	sub := "SUB-1"
	next := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	order := &models.Order{
		OrderID:        "ORDER-1",
		Status:         models.OrderStatusActive,
		SubscriptionID: &sub,
		NextChargeDate: &next,
	}
	repo := newFakeRepository(order, pendingOrder("ORDER-2", models.BillingFrequencyMonthly))
	repo.charges["ORDER-1"] = 2

	checks, err := newTestService(repo).PaymentHealth(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 1)

	c := checks[0]
	assert.Equal(t, "ORDER-1", c.OrderID)
	assert.Equal(t, HealthLate, c.Status)
	require.NotNil(t, c.DaysOverdue)
	assert.Equal(t, 5, *c.DaysOverdue)
	require.NotNil(t, c.LastChargeNumber)
	assert.Equal(t, 2, *c.LastChargeNumber)
	require.NotNil(t, c.ExpectedChargeNumber)
	assert.Equal(t, 3, *c.ExpectedChargeNumber)
}
