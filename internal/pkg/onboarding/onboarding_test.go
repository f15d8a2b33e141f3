package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rendeza/rendeza/app/models"
	"github.com/rendeza/rendeza/app/repository"
	"github.com/rendeza/rendeza/internal/pkg/mail"
)

type fakeCustomers struct {
	upserted []models.Customer
	err      error
}

func (f *fakeCustomers) GetByEmail(context.Context, string) (*models.Customer, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCustomers) UpsertByEmail(_ context.Context, c *models.Customer) error {
	if f.err != nil {
		return f.err
	}
	c.ID = 42
	f.upserted = append(f.upserted, *c)
	return nil
}

type fakeOrders struct {
	existing map[string]*models.Order
	created  []models.Order
	updated  map[string]repository.ReservationDetails
}

func newFakeOrders(existing ...*models.Order) *fakeOrders {
	f := &fakeOrders{existing: map[string]*models.Order{}, updated: map[string]repository.ReservationDetails{}}
	for _, o := range existing {
		f.existing[o.OrderID] = o
	}
	return f
}

func (f *fakeOrders) GetByOrderID(_ context.Context, orderID string) (*models.Order, error) {
	if o, ok := f.existing[orderID]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	f.created = append(f.created, *o)
	return nil
}

func (f *fakeOrders) UpdateReservation(_ context.Context, orderID string, d repository.ReservationDetails) error {
	f.updated[orderID] = d
	return nil
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func validSubmission() *Submission {
	return &Submission{
		FirstName:       "Dana",
		LastName:        "Levi",
		PhoneNumber:     "050-1234567",
		Email:           "dana@example.com",
		Address:         "1 Rothschild Blvd",
		ReservationWith: WithSpouse,
		PreferredDay:    "thursday",
		PreferredTime:   "19:00",
		StartDateOption: "this-week",
		PricingPlan:     "weekly",
	}
}

func newTestService(customers *fakeCustomers, orders *fakeOrders, mailer mail.Mailer) *Service {
	svc := NewService(&repository.Repositories{Customer: customers, Order: orders}, mailer, "benji@rendeza.com")
	svc.now = func() time.Time { return time.UnixMilli(1767225600000) }
	return svc
}

func TestPeopleCountUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want PeopleCount
		err  bool
	}{
		{`3`, PeopleCount{Value: 3, Set: true}, false},
		{`"4"`, PeopleCount{Value: 4, Set: true}, false},
		{`""`, PeopleCount{}, false},
		{`null`, PeopleCount{}, false},
		{`"many"`, PeopleCount{}, true},
	}

	for _, tt := range tests {
		var got struct {
			N PeopleCount `json:"n"`
		}
		err := json.Unmarshal([]byte(`{"n":`+tt.in+`}`), &got)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.N, tt.in)
	}
}

func TestSubmissionValidate(t *testing.T) {
	s := validSubmission()
	s.Normalize()
	require.NoError(t, s.Validate())
	assert.Equal(t, models.BillingFrequencyMonthly, s.BillingFrequency)

	missing := validSubmission()
	missing.Address = "  "
	missing.Normalize()
	assert.ErrorIs(t, missing.Validate(), ErrMissingFields)
	assert.True(t, IsValidationError(missing.Validate()))

	badPlan := validSubmission()
	badPlan.PricingPlan = "daily"
	assert.ErrorIs(t, badPlan.Validate(), ErrMissingFields)

	kids := validSubmission()
	kids.ReservationWith = WithKids
	assert.ErrorIs(t, kids.Validate(), ErrNumberOfPeopleMissing)
	kids.NumberOfPeople = PeopleCount{Value: 4, Set: true}
	assert.NoError(t, kids.Validate())
	assert.Equal(t, 4, *kids.PartySize())
}

func TestPartySizeForCouples(t *testing.T) {
	s := validSubmission()
	s.NumberOfPeople = PeopleCount{Value: 7, Set: true}
	require.NotNil(t, s.PartySize())
	assert.Equal(t, 2, *s.PartySize())

	s.ReservationWith = WithPartner
	assert.Equal(t, 2, *s.PartySize())
}

func TestPriceDisplay(t *testing.T) {
	assert.Equal(t, "$39/month", PriceDisplay("weekly", "monthly"))
	assert.Equal(t, "$390/year (Save $78)", PriceDisplay("weekly", "annual"))
	assert.Equal(t, "$250/year (Save $50)", PriceDisplay("biweekly", "annual"))
	assert.Equal(t, "Contact for pricing", PriceDisplay("business", "annual"))
}

func TestRenderEmail(t *testing.T) {
	s := validSubmission()
	s.BillingFrequency = "annual"
	s.AdditionalInfo = "<script>window seat</script>"

	text, html, err := RenderEmail(s)
	require.NoError(t, err)
	assert.Contains(t, text, "Name: Dana Levi")
	assert.Contains(t, text, "With: Spouse")
	assert.Contains(t, text, "Number of People: 2")
	assert.Contains(t, text, "Start Date: This coming Thursday")
	assert.Contains(t, text, "Billing: Annual (2 months free)")
	assert.Contains(t, text, "Additional Information:\n<script>window seat</script>")
	assert.Contains(t, html, "&lt;script&gt;window seat&lt;/script&gt;")
	assert.NotContains(t, html, "<script>")

	assert.Equal(t, "New Onboarding: Dana Levi - Thursday at 19:00", Subject(s))
}

func TestNewOrderID(t *testing.T) {
	id := NewOrderID(time.UnixMilli(1767225600000))
	assert.Regexp(t, regexp.MustCompile(`^ORDER-1767225600000-[0-9a-f]{7}$`), id)
}

func TestSubmitCreatesOrderAndSendsEmail(t *testing.T) {
	customers := &fakeCustomers{}
	orders := newFakeOrders()
	mailer := &fakeMailer{}

	s := validSubmission()
	s.BillingFrequency = "annual"
	res, err := newTestService(customers, orders, mailer).Submit(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, uint(42), res.CustomerID)
	assert.Regexp(t, `^ORDER-1767225600000-`, res.OrderID)

	require.Len(t, orders.created, 1)
	o := orders.created[0]
	assert.Equal(t, res.OrderID, o.OrderID)
	assert.Equal(t, 390.0, o.Amount)
	assert.Equal(t, models.BillingFrequencyAnnual, o.BillingFrequency)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	require.NotNil(t, o.CustomerID)
	assert.Equal(t, uint(42), *o.CustomerID)
	require.NotNil(t, o.NumberOfPeople)
	assert.Equal(t, 2, *o.NumberOfPeople)
	assert.Nil(t, o.AdditionalInfo)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "benji@rendeza.com", msg.To)
	assert.Equal(t, "dana@example.com", msg.ReplyTo)
	assert.Equal(t, "onboarding-1767225600000", msg.Headers["X-Entity-Ref-ID"])
}

func TestSubmitUpdatesExistingOrder(t *testing.T) {
	orders := newFakeOrders(&models.Order{OrderID: "ORDER-1", Plan: "weekly", Amount: 39})
	s := validSubmission()
	s.OrderID = "ORDER-1"
	s.ReservationWith = WithFriend
	s.NumberOfPeople = PeopleCount{Value: 3, Set: true}

	res, err := newTestService(&fakeCustomers{}, orders, &fakeMailer{}).Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", res.OrderID)
	assert.Empty(t, orders.created)

	d, ok := orders.updated["ORDER-1"]
	require.True(t, ok)
	assert.Equal(t, uint(42), d.CustomerID)
	assert.Equal(t, WithFriend, d.ReservationWith)
	assert.Equal(t, 3, *d.NumberOfPeople)
}

func TestSubmitContinuesWhenDatabaseFails(t *testing.T) {
	mailer := &fakeMailer{}
	res, err := newTestService(&fakeCustomers{err: errors.New("db down")}, newFakeOrders(), mailer).
		Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Len(t, mailer.sent, 1)
}

func TestSubmitErrors(t *testing.T) {
	_, err := newTestService(&fakeCustomers{}, newFakeOrders(), nil).Submit(context.Background(), validSubmission())
	assert.ErrorIs(t, err, ErrMailerNotConfigured)

	_, err = newTestService(&fakeCustomers{}, newFakeOrders(), &fakeMailer{err: errors.New("smtp 554")}).
		Submit(context.Background(), validSubmission())
	assert.ErrorContains(t, err, "smtp 554")
	assert.False(t, IsValidationError(err))

	invalid := validSubmission()
	invalid.Email = "not-an-email"
	_, err = newTestService(&fakeCustomers{}, newFakeOrders(), &fakeMailer{}).Submit(context.Background(), invalid)
	assert.True(t, IsValidationError(err))
}
