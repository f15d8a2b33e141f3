package billing

import (
	"errors"
	"fmt"
)

var (
	ErrMissingPaymentFields  = errors.New("missing required payment fields")
	ErrProviderNotConfigured = errors.New("payment provider is not configured")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrMissingOrderID        = errors.New("order id is required")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderTooOld           = errors.New("order is too old to activate via redirect")
	ErrPaymentNotConfirmed   = errors.New("payment could not be confirmed with the provider")
)

// ProviderError is returned when the provider rejects a request or answers
// with something that does not contain a payment URL. Body holds the raw
// response for operators.
type ProviderError struct {
	StatusCode int
	Body       string
	Reason     string
}

func (e *ProviderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("allpay: %s: status=%d body=%s", e.Reason, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("allpay: request failed: status=%d body=%s", e.StatusCode, e.Body)
}
