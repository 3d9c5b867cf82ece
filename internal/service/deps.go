package service

import (
	"context"
	"time"

	"checkout-service/internal/gateway/asaas"
	"checkout-service/internal/gateway/maxipago"
	"checkout-service/internal/models"
)

// Store is the persistence surface the services depend on, implemented by
// *store.Store. WithTx runs the callback inside one database transaction;
// store calls made through the derived context join it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomerByID(ctx context.Context, id string) (*models.Customer, error)
	GetCustomerByCPF(ctx context.Context, cpf string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, customer *models.Customer) error
	SetGatewayCustomerID(ctx context.Context, customerID, gatewayID string) error
	DeleteCustomer(ctx context.Context, id string) error
	CountOrdersByCustomer(ctx context.Context, customerID string) (int, error)

	CreateAddress(ctx context.Context, addr *models.Address) error
	GetAddressByID(ctx context.Context, id string) (*models.Address, error)
	GetAddressesByCustomer(ctx context.Context, customerID string) ([]models.Address, error)
	FindAddress(ctx context.Context, customerID, street, number, zipCode string) (*models.Address, error)
	ClearPrimaryAddress(ctx context.Context, customerID string) error
	SetPrimaryAddress(ctx context.Context, addressID string) error
	DeleteAddress(ctx context.Context, id string) error

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	UpdateOrderCustomer(ctx context.Context, orderID, customerID string) error
	UpdateOrderDelivery(ctx context.Context, orderID, deliveryMethod string, shippingValue float64, addressID *string) error
	ClearOrderAddress(ctx context.Context, orderID string) error
	SetOrderAttachment(ctx context.Context, orderID, url string) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	CreateOrderNote(ctx context.Context, note *models.OrderNote) error
	GetOrderNotesByOrderID(ctx context.Context, orderID string) ([]models.OrderNote, error)

	CreatePaymentLink(ctx context.Context, link *models.PaymentLink) error
	GetPaymentLinkByOrderID(ctx context.Context, orderID string) (*models.PaymentLink, error)
	GetPaymentLinkByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.PaymentLink, error)
	PopulatePaymentLink(ctx context.Context, link *models.PaymentLink) error
	UpdatePaymentLinkStatus(ctx context.Context, linkID, status string) error
	CreatePaymentTransaction(ctx context.Context, tx *models.PaymentTransaction) error
	GetPaymentTransactionsByOrderID(ctx context.Context, orderID string) ([]models.PaymentTransaction, error)
	HasConfirmedTransaction(ctx context.Context, orderID, providerTxID string) (bool, error)

	GetWebhookEventByProviderID(ctx context.Context, provider, providerEventID string) (*models.WebhookEvent, error)
	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	UpdateWebhookEventStatus(ctx context.Context, eventID, status, errMsg string) error
}

// InvoiceGateway is the asynchronous invoice provider, implemented by
// *asaas.Client.
type InvoiceGateway interface {
	EnsureCustomer(ctx context.Context, in asaas.CustomerInput) (string, error)
	CreatePayment(ctx context.Context, req *asaas.PaymentRequest) (*asaas.Payment, error)
	DueDate(now time.Time) time.Time
}

// CardGateway is the synchronous tokenized gateway, implemented by
// *maxipago.Client.
type CardGateway interface {
	DirectPixCharge(ctx context.Context, req *maxipago.PixChargeRequest) (*maxipago.ChargeResult, error)
	ChargeTokenizedCard(ctx context.Context, req *maxipago.CardChargeRequest) (*maxipago.ChargeResult, error)
}

// EventPublisher publishes domain events, implemented by
// *broker.EventPublisher.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishPaymentLinkCreated(ctx context.Context, event *models.PaymentLinkCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderExpired(ctx context.Context, event *models.OrderExpiredEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentDeclined(ctx context.Context, event *models.PaymentDeclinedEvent) error
}
