package onboarding

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/rendeza/rendeza/app/models"
	"github.com/rendeza/rendeza/internal/pkg/billing"
)

var companionLabels = map[string]string{
	WithSpouse:      "Spouse",
	WithPartner:     "Boyfriend / Girlfriend",
	WithKids:        "Kids",
	WithWholeFamily: "Whole Family",
	WithFriend:      "Friend",
}

var dayLabels = map[string]string{
	"monday":    "Monday",
	"tuesday":   "Tuesday",
	"wednesday": "Wednesday",
	"thursday":  "Thursday",
	"friday":    "Friday",
	"saturday":  "Saturday",
	"sunday":    "Sunday",
}

var planLabels = map[string]string{
	models.PlanWeekly:   "Weekly",
	models.PlanBiweekly: "Biweekly",
	models.PlanBusiness: "Business",
}

func labelOr(labels map[string]string, key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

// PriceDisplay renders the plan price for humans.
func PriceDisplay(plan, frequency string) string {
	if plan == models.PlanBusiness {
		return "Contact for pricing"
	}
	if billing.NormalizeBillingFrequency(frequency) == models.BillingFrequencyMonthly {
		return "$" + billing.PlanAmount(plan, models.BillingFrequencyMonthly).String() + "/month"
	}
	monthly := billing.PlanAmount(plan, models.BillingFrequencyMonthly)
	annual := billing.PlanAmount(plan, models.BillingFrequencyAnnual)
	savings := monthly.Mul(decimal.NewFromInt(12)).Sub(annual)
	return "$" + annual.String() + "/year (Save $" + savings.String() + ")"
}

// emailView is what both email templates render.
type emailView struct {
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	Address        string
	Companion      string
	PartySize      string
	Day            string
	PreferredTime  string
	StartDate      string
	Plan           string
	Billing        string
	Price          string
	AdditionalInfo string
}

func newEmailView(s *Submission) emailView {
	day := labelOr(dayLabels, s.PreferredDay)
	start := "The following " + day
	if s.StartDateOption == "this-week" {
		start = "This coming " + day
	}
	billingLabel := "Monthly"
	if s.BillingFrequency == models.BillingFrequencyAnnual {
		billingLabel = "Annual (2 months free)"
	}
	party := ""
	if n := s.PartySize(); n != nil {
		party = strconv.Itoa(*n)
	}

	return emailView{
		FirstName:      s.FirstName,
		LastName:       s.LastName,
		Email:          s.Email,
		PhoneNumber:    s.PhoneNumber,
		Address:        s.Address,
		Companion:      labelOr(companionLabels, s.ReservationWith),
		PartySize:      party,
		Day:            day,
		PreferredTime:  s.PreferredTime,
		StartDate:      start,
		Plan:           labelOr(planLabels, s.PricingPlan),
		Billing:        billingLabel,
		Price:          PriceDisplay(s.PricingPlan, s.BillingFrequency),
		AdditionalInfo: s.AdditionalInfo,
	}
}

// Subject is the notification email subject.
func Subject(s *Submission) string {
	return "New Onboarding: " + s.FirstName + " " + s.LastName + " - " + labelOr(dayLabels, s.PreferredDay) + " at " + s.PreferredTime
}

const textEmail = `New Onboarding Form Submission

Personal Information:
Name: {{.FirstName}} {{.LastName}}
Email: {{.Email}}
Phone: {{.PhoneNumber}}
Address: {{.Address}}

Reservation Details:
With: {{.Companion}}
Number of People: {{.PartySize}}
Preferred Day: {{.Day}}
Preferred Time: {{.PreferredTime}}
Start Date: {{.StartDate}}

Pricing Plan:
Plan: {{.Plan}}
Billing: {{.Billing}}
Price: {{.Price}}
{{if .AdditionalInfo}}
Additional Information:
{{.AdditionalInfo}}
{{end}}`

const htmlEmail = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #543A14;">New Onboarding Form Submission</h2>
  <h3 style="color: #543A14;">Personal Information</h3>
  <p><strong>Name:</strong> {{.FirstName}} {{.LastName}}</p>
  <p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
  <p><strong>Phone:</strong> {{.PhoneNumber}}</p>
  <p><strong>Address:</strong> {{.Address}}</p>
  <h3 style="color: #543A14;">Reservation Details</h3>
  <p><strong>With:</strong> {{.Companion}}</p>
  <p><strong>Number of People:</strong> {{.PartySize}}</p>
  <p><strong>Preferred Day:</strong> {{.Day}}</p>
  <p><strong>Preferred Time:</strong> {{.PreferredTime}}</p>
  <p><strong>Start Date:</strong> {{.StartDate}}</p>
  <h3 style="color: #543A14;">Pricing Plan</h3>
  <p><strong>Plan:</strong> {{.Plan}}</p>
  <p><strong>Billing:</strong> {{.Billing}}</p>
  <p><strong>Price:</strong> {{.Price}}</p>
  {{if .AdditionalInfo}}
  <h3 style="color: #543A14;">Additional Information:</h3>
  <div style="white-space: pre-wrap;">{{.AdditionalInfo}}</div>
  {{end}}
</body>
</html>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("onboarding.txt").Parse(textEmail))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("onboarding.html").Parse(htmlEmail))
)

// RenderEmail returns the plain text and HTML bodies of the notification.
func RenderEmail(s *Submission) (string, string, error) {
	view := newEmailView(s)

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, view); err != nil {
		return "", "", err
	}
	if err := htmlTmpl.Execute(&html, view); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(text.String()) + "\n", html.String(), nil
}
