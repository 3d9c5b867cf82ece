package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypePaymentLinkCreated = "PAYMENT_LINK_CREATED"
	EventTypeOrderPaid          = "ORDER_PAID"
	EventTypeOrderExpired       = "ORDER_EXPIRED"
	EventTypePaymentConfirmed   = "PAYMENT_CONFIRMED"
	EventTypePaymentDeclined    = "PAYMENT_DECLINED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an attendant opens an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string  `json:"order_id"`
	AttendantID string  `json:"attendant_id"`
	CustomerID  string  `json:"customer_id"`
	TotalValue  float64 `json:"total_value"`
}

// PaymentLinkCreatedEvent published when the hosted invoice is created
type PaymentLinkCreatedEvent struct {
	BaseEvent
	OrderID           string `json:"order_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	URL               string `json:"url"`
}

// OrderPaidEvent published when an order reaches PAID
type OrderPaidEvent struct {
	BaseEvent
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
	Method       string  `json:"method"`
	ProviderTxID string  `json:"provider_tx_id"`
}

// OrderExpiredEvent published when the provider reports the invoice overdue
type OrderExpiredEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
}

// PaymentConfirmedEvent published when a charge is confirmed
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
	Method       string  `json:"method"`
	ProviderTxID string  `json:"provider_tx_id"`
}

// PaymentDeclinedEvent published when the gateway declines a charge
type PaymentDeclinedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
	Reason  string `json:"reason"`
}
