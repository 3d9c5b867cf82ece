package models

import (
	"time"

	"github.com/lib/pq"
)

// Customer is shared by reference across orders. A customer whose name equals
// PlaceholderName and whose CPF is empty is an anonymous placeholder created
// when a checkout starts without prior identification.
type Customer struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Phone           string     `db:"phone" json:"phone"`
	Email           string     `db:"email" json:"email,omitempty"`
	CPF             string     `db:"cpf" json:"cpf,omitempty"`
	RG              string     `db:"rg" json:"rg,omitempty"`
	BirthDate       *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	GatewayCustomer string     `db:"gateway_customer_id" json:"gateway_customer_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PlaceholderName marks anonymous customers pending identification.
const PlaceholderName = "NAO IDENTIFICADO"

// IsPlaceholder reports whether the customer is still anonymous.
func (c *Customer) IsPlaceholder() bool {
	return c.Name == PlaceholderName && c.CPF == ""
}

// Address is owned by a customer; at most one per customer is primary.
// Orders reference addresses weakly.
type Address struct {
	ID         string    `db:"id" json:"id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	Street     string    `db:"street" json:"street"`
	Number     string    `db:"number" json:"number"`
	Complement string    `db:"complement" json:"complement,omitempty"`
	District   string    `db:"district" json:"district,omitempty"`
	City       string    `db:"city" json:"city"`
	State      string    `db:"state" json:"state"`
	ZipCode    string    `db:"zip_code" json:"zip_code"`
	IsPrimary  bool      `db:"is_primary" json:"is_primary"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Order is the aggregate root; it owns its items, notes, payment link and
// transactions. Status transitions only PENDING -> {PAID, EXPIRED, CANCELED};
// PAID orders are immutable for payment purposes.
type Order struct {
	ID             string    `db:"id" json:"id"`
	AttendantID    string    `db:"attendant_id" json:"attendant_id"`
	CustomerID     string    `db:"customer_id" json:"customer_id"`
	Status         string    `db:"status" json:"status"`
	TotalValue     float64   `db:"total_value" json:"total_value"`
	ShippingValue  float64   `db:"shipping_value" json:"shipping_value"`
	ShippingType   string    `db:"shipping_type" json:"shipping_type"`
	DiscountValue  float64   `db:"discount_value" json:"discount_value"`
	DiscountType   string    `db:"discount_type" json:"discount_type,omitempty"`
	DeliveryMethod string    `db:"delivery_method" json:"delivery_method,omitempty"`
	AddressID      *string   `db:"address_id" json:"address_id,omitempty"`
	AttachmentURL  string    `db:"attachment_url" json:"attachment_url,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem is a compounded-drug line on an order.
type OrderItem struct {
	ID        string         `db:"id" json:"id"`
	OrderID   string         `db:"order_id" json:"order_id"`
	Name      string         `db:"name" json:"name"`
	Dosage    string         `db:"dosage" json:"dosage,omitempty"`
	Actives   pq.StringArray `db:"actives" json:"actives,omitempty"`
	UnitPrice float64        `db:"unit_price" json:"unit_price"`
	Quantity  int            `db:"quantity" json:"quantity"`
}

// OrderNote is free text attached to an order by either side of the counter.
type OrderNote struct {
	ID        string    `db:"id" json:"id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	Author    string    `db:"author" json:"author"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PaymentLink is 1:1 with an order. It is created as a draft at order
// creation and only populated with provider data on explicit checkout
// submission.
type PaymentLink struct {
	ID                string     `db:"id" json:"id"`
	OrderID           string     `db:"order_id" json:"order_id"`
	Status            string     `db:"status" json:"status"`
	ProviderPaymentID string     `db:"provider_payment_id" json:"provider_payment_id,omitempty"`
	URL               string     `db:"url" json:"url,omitempty"`
	DueDate           *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// PaymentTransaction is an append-only ledger row per attempted charge.
// Rows are never mutated once CONFIRMED.
type PaymentTransaction struct {
	ID           string    `db:"id" json:"id"`
	OrderID      string    `db:"order_id" json:"order_id"`
	ProviderTxID string    `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	Method       string    `db:"method" json:"method"`
	Status       string    `db:"status" json:"status"`
	Amount       float64   `db:"amount" json:"amount"`
	CardLast4    string    `db:"card_last4" json:"card_last4,omitempty"`
	Installments int       `db:"installments" json:"installments,omitempty"`
	AuthCode     string    `db:"auth_code" json:"auth_code,omitempty"`
	PixPayload   string    `db:"pix_payload" json:"pix_payload,omitempty"`
	FailReason   string    `db:"fail_reason" json:"fail_reason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// WebhookEvent stores provider webhook payloads with deduplication metadata.
// A SUCCESS row for an event id makes redelivery a no-op.
type WebhookEvent struct {
	ID              string    `db:"id" json:"id"`
	Provider        string    `db:"provider" json:"provider"`
	ProviderEventID string    `db:"provider_event_id" json:"provider_event_id"`
	EventType       string    `db:"event_type" json:"event_type"`
	Payload         string    `db:"payload" json:"payload"`
	Status          string    `db:"status" json:"status"`
	Error           string    `db:"error" json:"error,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending  = "PENDING"
	OrderStatusPaid     = "PAID"
	OrderStatusCanceled = "CANCELED"
	OrderStatusExpired  = "EXPIRED"
)

// Shipping types
const (
	ShippingTypeDynamic = "DYNAMIC"
	ShippingTypeFixed   = "FIXED"
	ShippingTypeFree    = "FREE"
)

// Discount types
const (
	DiscountTypeFixed      = "FIXED"
	DiscountTypePercentage = "PERCENTAGE"
)

// Delivery methods
const (
	DeliveryMethodPickup   = "PICKUP"
	DeliveryMethodDelivery = "DELIVERY"
)

// Payment methods
const (
	PaymentMethodCreditCard = "CREDIT_CARD"
	PaymentMethodPix        = "PIX"
)

// Payment link statuses
const (
	PaymentLinkStatusDraft   = "DRAFT"
	PaymentLinkStatusPending = "PENDING"
	PaymentLinkStatusPaid    = "PAID"
	PaymentLinkStatusOverdue = "OVERDUE"
)

// Payment transaction statuses
const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusConfirmed = "CONFIRMED"
	TransactionStatusFailed    = "FAILED"
)

// Webhook event statuses
const (
	WebhookStatusProcessing = "PROCESSING"
	WebhookStatusSuccess    = "SUCCESS"
	WebhookStatusFailed     = "FAILED"
)

// Note authors
const (
	NoteAuthorCustomer  = "CUSTOMER"
	NoteAuthorAttendant = "ATTENDANT"
)
