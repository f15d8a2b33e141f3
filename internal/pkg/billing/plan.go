package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rendeza/rendeza/app/models"
)

type planPrice struct {
	monthly int64
	annual  int64
}

var planPricing = map[string]planPrice{
	models.PlanWeekly:   {monthly: 39, annual: 390},
	models.PlanBiweekly: {monthly: 25, annual: 250},
	models.PlanBusiness: {monthly: 0, annual: 0},
}

func normalizePlan(plan string) string {
	switch p := strings.ToLower(strings.TrimSpace(plan)); p {
	case models.PlanWeekly, models.PlanBiweekly, models.PlanBusiness:
		return p
	default:
		return ""
	}
}

// NormalizeBillingFrequency maps anything that is not annual to monthly.
func NormalizeBillingFrequency(frequency string) string {
	if strings.ToLower(strings.TrimSpace(frequency)) == models.BillingFrequencyAnnual {
		return models.BillingFrequencyAnnual
	}
	return models.BillingFrequencyMonthly
}

// PlanDisplayName is the line item name shown on the hosted payment page.
func PlanDisplayName(plan string) string {
	switch normalizePlan(plan) {
	case models.PlanWeekly:
		return "Weekly Plan"
	case models.PlanBiweekly:
		return "Biweekly Plan"
	default:
		return "Business Plan"
	}
}

// PlanAmount returns the list price of a plan. Business plans are priced
// individually and report zero, as do unknown plans.
func PlanAmount(plan, frequency string) decimal.Decimal {
	price, ok := planPricing[normalizePlan(plan)]
	if !ok {
		return decimal.Zero
	}
	if NormalizeBillingFrequency(frequency) == models.BillingFrequencyAnnual {
		return decimal.NewFromInt(price.annual)
	}
	return decimal.NewFromInt(price.monthly)
}

// FormatPrice renders an amount with exactly two decimals.
func FormatPrice(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// NextChargeDate is one calendar month (monthly) or twelve (annual) after from.
// Month overflow follows time.AddDate, so Jan 31 + 1 month is Mar 3 (or 2).
func NextChargeDate(from time.Time, frequency string) time.Time {
	if NormalizeBillingFrequency(frequency) == models.BillingFrequencyAnnual {
		return from.AddDate(0, 12, 0)
	}
	return from.AddDate(0, 1, 0)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
