package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rendeza/rendeza/app/models"
	"github.com/rendeza/rendeza/app/repository"
	"github.com/rendeza/rendeza/internal/pkg/billing"
	"github.com/rendeza/rendeza/internal/pkg/mail"
)

// Result is what a successful submission reports back.
type Result struct {
	OrderID    string
	CustomerID uint
	Persisted  bool
}

// Service stores onboarding submissions and notifies the team by email.
type Service struct {
	customers repository.CustomerRepository
	orders    repository.OrderRepository
	mailer    mail.Mailer
	notifyTo  string
	now       func() time.Time
}

// NewService creates an onboarding service. mailer may be nil when no mail
// server is configured; submissions are then rejected.
func NewService(repos *repository.Repositories, mailer mail.Mailer, notifyTo string) *Service {
	return &Service{
		customers: repos.Customer,
		orders:    repos.Order,
		mailer:    mailer,
		notifyTo:  notifyTo,
		now:       time.Now,
	}
}

// NewOrderID generates an order id of the form ORDER-<unix ms>-<random>.
func NewOrderID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("ORDER-%d-%s", now.UnixMilli(), random)
}

// Submit validates s, saves the customer and order, and sends the
// notification email. Persistence failures are logged and do not stop the
// email; a failed email fails the submission.
func (svc *Service) Submit(ctx context.Context, s *Submission) (*Result, error) {
	if svc.mailer == nil {
		return nil, ErrMailerNotConfigured
	}

	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.OrderID == "" {
		s.OrderID = NewOrderID(svc.now())
	}

	log.Infof("[Onboarding] Submission from %s for order %s (plan=%s, with=%s)", s.Email, s.OrderID, s.PricingPlan, s.ReservationWith)

	result := &Result{OrderID: s.OrderID}
	if err := svc.persist(ctx, s, result); err != nil {
		log.Errorf("[Onboarding] Database error for order %s (continuing with email): %v", s.OrderID, err)
	} else {
		result.Persisted = true
	}

	text, html, err := RenderEmail(s)
	if err != nil {
		return nil, fmt.Errorf("render onboarding email: %w", err)
	}
	err = svc.mailer.Send(ctx, mail.Message{
		To:      svc.notifyTo,
		ReplyTo: s.Email,
		Subject: Subject(s),
		Text:    text,
		HTML:    html,
		Headers: map[string]string{
			"X-Entity-Ref-ID": fmt.Sprintf("onboarding-%d", svc.now().UnixMilli()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("send onboarding email: %w", err)
	}

	log.Infof("[Onboarding] Notification sent for order %s", s.OrderID)
	return result, nil
}

func (svc *Service) persist(ctx context.Context, s *Submission, result *Result) error {
	customer := &models.Customer{
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		Email:       s.Email,
		PhoneNumber: s.PhoneNumber,
		Address:     s.Address,
	}
	if err := svc.customers.UpsertByEmail(ctx, customer); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	result.CustomerID = customer.ID

	var info *string
	if s.AdditionalInfo != "" {
		info = &s.AdditionalInfo
	}

	_, err := svc.orders.GetByOrderID(ctx, s.OrderID)
	switch {
	case err == nil:
		// created earlier by the payment flow
		return svc.orders.UpdateReservation(ctx, s.OrderID, repository.ReservationDetails{
			CustomerID:      customer.ID,
			ReservationWith: s.ReservationWith,
			NumberOfPeople:  s.PartySize(),
			PreferredDay:    s.PreferredDay,
			PreferredTime:   s.PreferredTime,
			StartDateOption: s.StartDateOption,
			AdditionalInfo:  info,
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		amount, _ := billing.PlanAmount(s.PricingPlan, s.BillingFrequency).Float64()
		customerID := customer.ID
		return svc.orders.Create(ctx, &models.Order{
			OrderID:          s.OrderID,
			CustomerID:       &customerID,
			Plan:             s.PricingPlan,
			BillingFrequency: billing.NormalizeBillingFrequency(s.BillingFrequency),
			Amount:           amount,
			Status:           models.OrderStatusPending,
			ReservationWith:  s.ReservationWith,
			NumberOfPeople:   s.PartySize(),
			PreferredDay:     s.PreferredDay,
			PreferredTime:    s.PreferredTime,
			StartDateOption:  s.StartDateOption,
			AdditionalInfo:   info,
		})
	default:
		return fmt.Errorf("load order: %w", err)
	}
}
