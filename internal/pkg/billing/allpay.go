package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/rendeza/rendeza/internal/pkg/constants"
)

const (
	DefaultAllpayAPIURL = "https://allpay.to/app/?show=getpayment&mode=api9"
	DefaultCurrency     = "ILS"
	DefaultLang         = "AUTO"

	defaultAllpayTimeout = 15 * time.Second
)

// AllpayConfig holds what the Allpay client needs from process configuration.
type AllpayConfig struct {
	APIURL   string
	Login    string
	APIKey   string
	Currency string
	Lang     string
	BaseURL  string
	Timeout  time.Duration
}

// Client signs and submits payment creation requests and verifies webhook
// notifications against the same shared secret.
type Client struct {
	cfg  AllpayConfig
	http *resty.Client
}

// NewClient creates an Allpay client. Empty currency, language, API URL and
// timeout fall back to the provider defaults.
func NewClient(cfg AllpayConfig) *Client {
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAllpayAPIURL
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = DefaultCurrency
	}
	if strings.TrimSpace(cfg.Lang) == "" {
		cfg.Lang = DefaultLang
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAllpayTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		cfg:  cfg,
		http: resty.New().SetTimeout(cfg.Timeout),
	}
}

// Configured reports whether the API credentials are present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.Login) != "" && strings.TrimSpace(c.cfg.APIKey) != ""
}

// Currency is the default currency for requests and notifications.
func (c *Client) Currency() string {
	return c.cfg.Currency
}

// NotificationsURL is where the provider posts webhooks.
func (c *Client) NotificationsURL() string {
	return c.cfg.BaseURL + constants.WebhookRoute
}

// SuccessURL is where the provider redirects the browser after payment.
func (c *Client) SuccessURL(orderID string) string {
	return c.cfg.BaseURL + constants.PaymentSuccessPage + "?order_id=" + url.QueryEscape(orderID)
}

type allpayItem struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
	Vat   int     `json:"vat"`
}

type allpaySubscription struct {
	StartType int `json:"start_type"`
	EndType   int `json:"end_type"`
}

type allpayPaymentBody struct {
	Login            string             `json:"login"`
	OrderID          string             `json:"order_id"`
	Items            []allpayItem       `json:"items"`
	Subscription     allpaySubscription `json:"subscription"`
	Currency         string             `json:"currency"`
	Lang             string             `json:"lang"`
	NotificationsURL string             `json:"notifications_url"`
	SuccessURL       string             `json:"success_url"`
	BacklinkURL      string             `json:"backlink_url"`
	ClientName       string             `json:"client_name"`
	ClientEmail      string             `json:"client_email"`
	ClientPhone      string             `json:"client_phone"`
	Sign             string             `json:"sign"`
}

// PaymentParams builds the canonical parameter set that is signed for req.
// All leaf values are strings: the provider only signs string values nested
// inside items and subscription.
func (c *Client) PaymentParams(req PaymentRequest) map[string]any {
	return map[string]any{
		"login":    c.cfg.Login,
		"order_id": req.OrderID,
		"items": []any{
			map[string]any{
				"name":  PlanDisplayName(req.Plan),
				"qty":   "1",
				"price": FormatPrice(req.Amount),
				"vat":   "0",
			},
		},
		// start immediately, run until cancelled
		"subscription": map[string]any{
			"start_type": "1",
			"end_type":   "1",
		},
		"currency":          c.cfg.Currency,
		"lang":              c.cfg.Lang,
		"notifications_url": c.NotificationsURL(),
		"success_url":       c.SuccessURL(req.OrderID),
		"backlink_url":      c.cfg.BaseURL,
		"client_name":       req.ClientName(),
		"client_email":      req.Email,
		"client_phone":      req.PhoneNumber,
	}
}

func (c *Client) paymentBody(req PaymentRequest, sign string) allpayPaymentBody {
	price, _ := req.Amount.Round(2).Float64()
	return allpayPaymentBody{
		Login:   c.cfg.Login,
		OrderID: req.OrderID,
		Items: []allpayItem{{
			Name:  PlanDisplayName(req.Plan),
			Qty:   1,
			Price: price,
			Vat:   0,
		}},
		Subscription:     allpaySubscription{StartType: 1, EndType: 1},
		Currency:         c.cfg.Currency,
		Lang:             c.cfg.Lang,
		NotificationsURL: c.NotificationsURL(),
		SuccessURL:       c.SuccessURL(req.OrderID),
		BacklinkURL:      c.cfg.BaseURL,
		ClientName:       req.ClientName(),
		ClientEmail:      req.Email,
		ClientPhone:      req.PhoneNumber,
		Sign:             sign,
	}
}

// CreatePayment opens a hosted subscription payment session for req and
// returns the URL the customer must be redirected to.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !c.Configured() {
		return nil, ErrProviderNotConfigured
	}

	sign := Sign(c.PaymentParams(req), c.cfg.APIKey)
	log.Infof("[Allpay] Creating subscription payment for order %s", req.OrderID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(c.paymentBody(req, sign)).
		Post(c.cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("allpay request failed: %w", err)
	}

	body := string(resp.Body())
	log.Debugf("[Allpay] Response for order %s: status=%d body=%s", req.OrderID, resp.StatusCode(), body)
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &ProviderError{StatusCode: resp.StatusCode(), Body: body}
	}

	paymentURL := parsePaymentURL(body)
	if paymentURL == "" {
		return nil, &ProviderError{StatusCode: resp.StatusCode(), Body: body, Reason: "no payment url in response"}
	}

	return &PaymentSession{OrderID: req.OrderID, PaymentURL: paymentURL}, nil
}

var paymentURLFields = []string{"url", "payment_url", "link"}

// parsePaymentURL accepts a JSON object carrying the URL under one of the
// known field names, a JSON string, or a bare URL.
func parsePaymentURL(body string) string {
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return strings.TrimSpace(body)
	}

	switch v := decoded.(type) {
	case map[string]any:
		for _, field := range paymentURLFields {
			if s, ok := v[field].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}

// VerifyNotification checks a webhook against the shared secret.
func (c *Client) VerifyNotification(n *Notification) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return ErrProviderNotConfigured
	}
	return n.Verify(c.cfg.APIKey)
}

// ExpectedSignature is the signature the notification should carry. It is
// only used for forensic logging of rejected deliveries.
func (c *Client) ExpectedSignature(n *Notification) string {
	return Sign(n.SignedParams(), c.cfg.APIKey)
}
