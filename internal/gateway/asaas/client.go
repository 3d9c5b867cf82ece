package asaas

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/internal/util"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Webhook event types delivered by the provider.
const (
	EventPaymentReceived  = "PAYMENT_RECEIVED"
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentOverdue   = "PAYMENT_OVERDUE"
)

// Customer is the provider-side customer record.
type Customer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CpfCnpj     string `json:"cpfCnpj"`
	Email       string `json:"email,omitempty"`
	MobilePhone string `json:"mobilePhone,omitempty"`
}

type customerList struct {
	Data []Customer `json:"data"`
}

// Discount is a fixed-amount invoice discount. Percentage discounts must be
// pre-converted to an absolute amount before calling.
type Discount struct {
	Value            float64 `json:"value"`
	DueDateLimitDays int     `json:"dueDateLimitDays"`
	Type             string  `json:"type"`
}

// PaymentRequest creates a hosted invoice for a remote customer.
type PaymentRequest struct {
	Customer          string    `json:"customer"`
	BillingType       string    `json:"billingType"`
	Value             float64   `json:"value"`
	DueDate           string    `json:"dueDate"`
	Description       string    `json:"description,omitempty"`
	ExternalReference string    `json:"externalReference,omitempty"`
	Discount          *Discount `json:"discount,omitempty"`
}

// Payment is the provider-side invoice.
type Payment struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Value      float64 `json:"value"`
	InvoiceURL string  `json:"invoiceUrl"`
}

// CustomerInput is the local customer data pushed to the provider.
type CustomerInput struct {
	Name  string
	CPF   string
	Email string
	Phone string
}

// WebhookPayload is the body the provider posts to the webhook endpoint.
type WebhookPayload struct {
	ID      string         `json:"id"`
	Event   string         `json:"event"`
	Payment WebhookPayment `json:"payment"`
}

type WebhookPayment struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Value             float64 `json:"value"`
	NetValue          float64 `json:"netValue"`
	BillingType       string  `json:"billingType"`
	Status            string  `json:"status"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

type apiError struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// Client talks to the invoice gateway. With no API key configured it
// degrades to deterministic mock responses so non-production environments
// keep working without provider credentials.
type Client struct {
	http        *resty.Client
	apiKey      string
	dueDateDays int
	logger      *zap.Logger
}

// NewClient creates an invoice gateway client with a bounded timeout.
func NewClient(baseURL, apiKey string, dueDateDays int) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("access_token", apiKey)

	if dueDateDays <= 0 {
		dueDateDays = 3
	}

	return &Client{
		http:        http,
		apiKey:      apiKey,
		dueDateDays: dueDateDays,
		logger:      util.GetLogger(),
	}
}

// MockMode reports whether the client answers locally instead of calling the
// provider.
func (c *Client) MockMode() bool {
	return c.apiKey == ""
}

// DueDate returns the invoice due date for an invoice created now.
func (c *Client) DueDate(now time.Time) time.Time {
	return now.AddDate(0, 0, c.dueDateDays)
}

// EnsureCustomer looks up a remote customer by tax id, updates it when
// found and creates it otherwise. Returns the remote customer id.
func (c *Client) EnsureCustomer(ctx context.Context, in CustomerInput) (string, error) {
	if c.MockMode() {
		return "cus_mock_" + digits(in.CPF), nil
	}

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("asaas", "ensure_customer").Observe(time.Since(start).Seconds())
	}()

	var list customerList
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("cpfCnpj", digits(in.CPF)).
		SetResult(&list).
		Get("/customers")
	if err != nil {
		return "", fmt.Errorf("failed to look up remote customer: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("remote customer lookup failed: %s", respError(resp))
	}

	body := Customer{
		Name:        in.Name,
		CpfCnpj:     digits(in.CPF),
		Email:       in.Email,
		MobilePhone: digits(in.Phone),
	}

	if len(list.Data) > 0 {
		existing := list.Data[0]
		var updated Customer
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&updated).
			Put("/customers/" + existing.ID)
		if err != nil {
			return "", fmt.Errorf("failed to update remote customer: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("remote customer update failed: %s", respError(resp))
		}
		return existing.ID, nil
	}

	var created Customer
	resp, err = c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&created).
		Post("/customers")
	if err != nil {
		return "", fmt.Errorf("failed to create remote customer: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("remote customer creation failed: %s", respError(resp))
	}

	return created.ID, nil
}

// CreatePayment creates the hosted invoice and returns its id, status and
// hosted URL.
func (c *Client) CreatePayment(ctx context.Context, req *PaymentRequest) (*Payment, error) {
	if req.BillingType == "" {
		req.BillingType = "UNDEFINED"
	}

	if c.MockMode() {
		return &Payment{
			ID:         "pay_mock_" + req.ExternalReference,
			Status:     "PENDING",
			Value:      req.Value,
			InvoiceURL: "https://sandbox.asaas.com/i/mock-" + req.ExternalReference,
		}, nil
	}

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("asaas", "create_payment").Observe(time.Since(start).Seconds())
	}()

	var payment Payment
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&payment).
		Post("/payments")
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("invoice creation failed: %s", respError(resp))
	}

	return &payment, nil
}

func respError(resp *resty.Response) string {
	var parsed apiError
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil && len(parsed.Errors) > 0 {
		return fmt.Sprintf("%s (%s)", parsed.Errors[0].Description, parsed.Errors[0].Code)
	}
	return fmt.Sprintf("status %d", resp.StatusCode())
}

func digits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
