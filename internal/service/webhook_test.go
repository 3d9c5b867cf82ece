package service

import (
	"context"
	"testing"

	"checkout-service/internal/gateway/asaas"
	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookFixture(t *testing.T) (*WebhookService, *fakeStore, *fakePublisher) {
	t.Helper()
	f := newFakeStore()
	publisher := &fakePublisher{}
	svc := NewWebhookService(f, nil, publisher)
	return svc, f, publisher
}

func seedInvoicedOrder(t *testing.T, f *fakeStore) *models.Order {
	t.Helper()
	ctx := context.Background()
	order := seedOrder(t, f, 150)

	link, err := f.GetPaymentLinkByOrderID(ctx, order.ID)
	require.NoError(t, err)
	link.Status = models.PaymentLinkStatusPending
	link.ProviderPaymentID = "pay_001"
	link.URL = "https://sandbox.asaas.com/i/001"
	require.NoError(t, f.PopulatePaymentLink(ctx, link))
	return order
}

func paymentEvent(event, eventID string) *asaas.WebhookPayload {
	return &asaas.WebhookPayload{
		ID:    eventID,
		Event: event,
		Payment: asaas.WebhookPayment{
			ID:          "pay_001",
			Value:       150,
			BillingType: "PIX",
			Status:      "RECEIVED",
		},
	}
}

func TestHandleEventPaymentReceived(t *testing.T) {
	ctx := context.Background()
	svc, f, publisher := newWebhookFixture(t)
	order := seedInvoicedOrder(t, f)

	payload := paymentEvent(asaas.EventPaymentReceived, "evt_001")
	require.NoError(t, svc.HandleEvent(ctx, payload, []byte(`{}`)))

	assert.Equal(t, models.OrderStatusPaid, order.Status)

	link, _ := f.GetPaymentLinkByOrderID(ctx, order.ID)
	assert.Equal(t, models.PaymentLinkStatusPaid, link.Status)

	txs, _ := f.GetPaymentTransactionsByOrderID(ctx, order.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionStatusConfirmed, txs[0].Status)
	assert.Equal(t, models.PaymentMethodPix, txs[0].Method)
	assert.Equal(t, "pay_001", txs[0].ProviderTxID)

	event, err := f.GetWebhookEventByProviderID(ctx, "asaas", "evt_001")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, models.WebhookStatusSuccess, event.Status)

	assert.Equal(t, 1, publisher.published(models.EventTypeOrderPaid))
	assert.Equal(t, 1, publisher.published(models.EventTypePaymentConfirmed))
}

func TestHandleEventRedeliveryIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc, f, publisher := newWebhookFixture(t)
	order := seedInvoicedOrder(t, f)

	payload := paymentEvent(asaas.EventPaymentReceived, "evt_001")
	require.NoError(t, svc.HandleEvent(ctx, payload, []byte(`{}`)))
	require.NoError(t, svc.HandleEvent(ctx, payload, []byte(`{}`)))

	// Same event id twice: exactly one transaction, one set of events.
	txs, _ := f.GetPaymentTransactionsByOrderID(ctx, order.ID)
	assert.Len(t, txs, 1)
	assert.Equal(t, 1, publisher.published(models.EventTypeOrderPaid))
}

func TestHandleEventNewEventIDAfterPaidCreatesNoSecondTransaction(t *testing.T) {
	ctx := context.Background()
	svc, f, publisher := newWebhookFixture(t)
	order := seedInvoicedOrder(t, f)

	require.NoError(t, svc.HandleEvent(ctx, paymentEvent(asaas.EventPaymentReceived, "evt_001"), []byte(`{}`)))
	// The provider often follows RECEIVED with CONFIRMED under a new id.
	require.NoError(t, svc.HandleEvent(ctx, paymentEvent(asaas.EventPaymentConfirmed, "evt_002"), []byte(`{}`)))

	assert.Equal(t, models.OrderStatusPaid, order.Status)
	txs, _ := f.GetPaymentTransactionsByOrderID(ctx, order.ID)
	assert.Len(t, txs, 1)
	assert.Equal(t, 1, publisher.published(models.EventTypeOrderPaid))
}

func TestHandleEventOverdueExpiresOrder(t *testing.T) {
	ctx := context.Background()
	svc, f, publisher := newWebhookFixture(t)
	order := seedInvoicedOrder(t, f)

	require.NoError(t, svc.HandleEvent(ctx, paymentEvent(asaas.EventPaymentOverdue, "evt_010"), []byte(`{}`)))

	assert.Equal(t, models.OrderStatusExpired, order.Status)
	link, _ := f.GetPaymentLinkByOrderID(ctx, order.ID)
	assert.Equal(t, models.PaymentLinkStatusOverdue, link.Status)
	assert.Equal(t, 1, publisher.published(models.EventTypeOrderExpired))
}

func TestHandleEventOverdueNeverDowngradesPaidOrder(t *testing.T) {
	ctx := context.Background()
	svc, f, publisher := newWebhookFixture(t)
	order := seedInvoicedOrder(t, f)

	require.NoError(t, svc.HandleEvent(ctx, paymentEvent(asaas.EventPaymentReceived, "evt_001"), []byte(`{}`)))
	require.NoError(t, svc.HandleEvent(ctx, paymentEvent(asaas.EventPaymentOverdue, "evt_002"), []byte(`{}`)))

	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, 0, publisher.published(models.EventTypeOrderExpired))
}

func TestHandleEventUnknownPaymentIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newWebhookFixture(t)

	payload := &asaas.WebhookPayload{
		ID:    "evt_404",
		Event: asaas.EventPaymentReceived,
		Payment: asaas.WebhookPayment{
			ID: "pay_unknown",
		},
	}
	require.NoError(t, svc.HandleEvent(ctx, payload, []byte(`{}`)))

	event, err := f.GetWebhookEventByProviderID(ctx, "asaas", "evt_404")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, models.WebhookStatusSuccess, event.Status)
}

func TestHandleEventUnknownTypeIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newWebhookFixture(t)
	order := seedInvoicedOrder(t, f)

	payload := paymentEvent("PAYMENT_UPDATED", "evt_020")
	require.NoError(t, svc.HandleEvent(ctx, payload, []byte(`{}`)))

	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestHandleEventFallsBackToExternalReference(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newWebhookFixture(t)
	order := seedInvoicedOrder(t, f)

	payload := paymentEvent(asaas.EventPaymentReceived, "evt_030")
	payload.Payment.ExternalReference = order.ID
	require.NoError(t, svc.HandleEvent(ctx, payload, []byte(`{}`)))

	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestHandleEventWithoutEventIDDerivesOne(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newWebhookFixture(t)
	order := seedInvoicedOrder(t, f)

	payload := paymentEvent(asaas.EventPaymentReceived, "")
	require.NoError(t, svc.HandleEvent(ctx, payload, []byte(`{}`)))
	require.NoError(t, svc.HandleEvent(ctx, payload, []byte(`{}`)))

	assert.Equal(t, models.OrderStatusPaid, order.Status)
	txs, _ := f.GetPaymentTransactionsByOrderID(ctx, order.ID)
	assert.Len(t, txs, 1)

	event, err := f.GetWebhookEventByProviderID(ctx, "asaas", "PAYMENT_RECEIVED:pay_001")
	require.NoError(t, err)
	require.NotNil(t, event)
}
