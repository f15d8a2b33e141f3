package billing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Logical webhook fields.
const (
	FieldOrderID        = "order_id"
	FieldStatus         = "status"
	FieldTransactionID  = "transaction_id"
	FieldSubscriptionID = "subscription_id"
	FieldChargeNumber   = "charge_number"
	FieldAmount         = "amount"
	FieldCurrency       = "currency"
)

// Ledger status values derived from the provider status.
const (
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
	PaymentStatusPending = "pending"
)

// ProviderFieldAliases maps each logical field to the parameter names the
// provider has been seen to use for it, in lookup order.
var ProviderFieldAliases = map[string][]string{
	FieldOrderID:        {"order_id"},
	FieldStatus:         {"status", "payment_status"},
	FieldTransactionID:  {"transaction_id", "payment_id", "receipt"},
	FieldSubscriptionID: {"subscription_id"},
	FieldChargeNumber:   {"charge_number", "inst"},
	FieldAmount:         {"amount"},
	FieldCurrency:       {"currency"},
}

// LookupField returns the first non-empty alias value of field.
func LookupField(params map[string]any, field string) (string, bool) {
	for _, alias := range ProviderFieldAliases[field] {
		s, ok := scalarString(params[alias])
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// ExtractFields reads the business fields of a verified notification.
// defaultCurrency is used when the provider omits the currency.
func ExtractFields(n *Notification, defaultCurrency string) WebhookFields {
	params := n.Params
	f := WebhookFields{}

	f.OrderID, _ = LookupField(params, FieldOrderID)
	f.StatusCode, f.Status = extractStatus(params)
	f.TransactionID, _ = LookupField(params, FieldTransactionID)
	f.SubscriptionID, _ = LookupField(params, FieldSubscriptionID)
	f.IsRecurring = f.SubscriptionID != ""

	if raw, ok := LookupField(params, FieldChargeNumber); ok {
		if num, ok := parseLeadingInt(raw); ok {
			f.ChargeNumber = &num
		}
	}
	if raw, ok := LookupField(params, FieldAmount); ok {
		if d, err := decimal.NewFromString(raw); err == nil {
			amount, _ := d.Float64()
			f.Amount = &amount
		}
	}

	f.Currency = defaultCurrency
	if c, ok := LookupField(params, FieldCurrency); ok {
		f.Currency = c
	}
	return f
}

// extractStatus reads the numeric status (1 paid, 0 unpaid) and falls back to
// the textual aliases, defaulting to pending.
func extractStatus(params map[string]any) (*int, string) {
	if raw, ok := scalarString(params["status"]); ok {
		if code, ok := parseLeadingInt(raw); ok {
			switch code {
			case 1:
				return &code, PaymentStatusSuccess
			case 0:
				return &code, PaymentStatusFailed
			}
		}
	}
	if s, ok := LookupField(params, FieldStatus); ok {
		return nil, strings.ToLower(s)
	}
	return nil, PaymentStatusPending
}

// parseLeadingInt parses the integer prefix of s, so "1", " 2 " and "3.0"
// all yield numbers while "abc" does not.
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
