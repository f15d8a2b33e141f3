package onboarding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rendeza/rendeza/app/models"
)

var (
	ErrMissingFields         = errors.New("all required fields must be filled")
	ErrNumberOfPeopleMissing = errors.New("number of people is required for this reservation type")
	ErrMailerNotConfigured   = errors.New("email service is not configured")
)

// Reservation companions.
const (
	WithSpouse      = "spouse"
	WithPartner     = "boyfriend-girlfriend"
	WithKids        = "kids"
	WithWholeFamily = "whole-family"
	WithFriend      = "friend"
)

// PeopleCount accepts the number of people as a JSON number, a numeric string
// or an empty value.
type PeopleCount struct {
	Value int
	Set   bool
}

func (p *PeopleCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*p = PeopleCount{}
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*p = PeopleCount{}
		return nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("numberOfPeople: %q is not a whole number", raw)
	}
	*p = PeopleCount{Value: n, Set: true}
	return nil
}

func (p PeopleCount) MarshalJSON() ([]byte, error) {
	if !p.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(p.Value)), nil
}

// Submission is the onboarding intake form.
type Submission struct {
	OrderID          string      `json:"orderId"`
	FirstName        string      `json:"firstName" validate:"required,max=100"`
	LastName         string      `json:"lastName" validate:"required,max=100"`
	PhoneNumber      string      `json:"phoneNumber" validate:"required,max=50"`
	Email            string      `json:"email" validate:"required,email,max=200"`
	Address          string      `json:"address" validate:"required,max=255"`
	ReservationWith  string      `json:"reservationWith" validate:"required"`
	NumberOfPeople   PeopleCount `json:"numberOfPeople"`
	PreferredDay     string      `json:"preferredDay" validate:"required"`
	PreferredTime    string      `json:"preferredTime" validate:"required"`
	StartDateOption  string      `json:"startDateOption" validate:"required"`
	PricingPlan      string      `json:"pricingPlan" validate:"required,oneof=weekly biweekly business"`
	BillingFrequency string      `json:"billingFrequency" validate:"omitempty,oneof=monthly annual"`
	AdditionalInfo   string      `json:"additionalInfo"`
}

// Normalize trims the free-text fields and applies the defaults.
func (s *Submission) Normalize() {
	for _, f := range []*string{
		&s.OrderID, &s.FirstName, &s.LastName, &s.PhoneNumber, &s.Email, &s.Address,
		&s.ReservationWith, &s.PreferredDay, &s.PreferredTime, &s.StartDateOption,
		&s.PricingPlan, &s.BillingFrequency, &s.AdditionalInfo,
	} {
		*f = strings.TrimSpace(*f)
	}
	s.PricingPlan = strings.ToLower(s.PricingPlan)
	s.BillingFrequency = strings.ToLower(s.BillingFrequency)
	if s.BillingFrequency == "" {
		s.BillingFrequency = models.BillingFrequencyMonthly
	}
}

// Validate checks the required fields and the companion rules.
func (s *Submission) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingFields, verrs[0].Field())
		}
		return fmt.Errorf("%w: %v", ErrMissingFields, err)
	}
	if s.RequiresNumberOfPeople() && (!s.NumberOfPeople.Set || s.NumberOfPeople.Value <= 0) {
		return ErrNumberOfPeopleMissing
	}
	return nil
}

// RequiresNumberOfPeople is true for companions where the party size varies.
func (s *Submission) RequiresNumberOfPeople() bool {
	switch s.ReservationWith {
	case WithKids, WithWholeFamily, WithFriend:
		return true
	}
	return false
}

// PartySize is the number of people to reserve for. Couples are always two.
func (s *Submission) PartySize() *int {
	switch s.ReservationWith {
	case WithSpouse, WithPartner:
		two := 2
		return &two
	}
	if !s.NumberOfPeople.Set {
		return nil
	}
	n := s.NumberOfPeople.Value
	return &n
}

// IsValidationError reports whether err should be answered with 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingFields) || errors.Is(err, ErrNumberOfPeopleMissing)
}
