package service

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/gateway/asaas"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	webhookProvider = "asaas"

	// How long processed event ids stay in the redis fast-path filter. The
	// database uniqueness constraint remains authoritative after expiry.
	webhookSeenTTL = 7 * 24 * time.Hour
)

// DedupCache is the redis fast path in front of the database deduplication,
// implemented by *redisclient.Client. A nil cache disables the fast path.
type DedupCache interface {
	IsWebhookEventSeen(ctx context.Context, provider, eventID string) (bool, error)
	MarkWebhookEventSeen(ctx context.Context, provider, eventID string, ttl time.Duration) (bool, error)
	InvalidateCheckoutView(ctx context.Context, orderID string) error
}

// WebhookService reconciles provider payment notifications with local order
// state. Processing is idempotent: the same event id applied twice leaves the
// database unchanged and answers success.
type WebhookService struct {
	store     Store
	cache     DedupCache
	publisher EventPublisher
	logger    *zap.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(st Store, cache DedupCache, publisher EventPublisher) *WebhookService {
	return &WebhookService{
		store:     st,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

type webhookOutcome struct {
	result  string // applied | duplicate | ignored
	orderID string
	event   string
	amount  float64
	method  string
	txID    string
}

// HandleEvent processes one provider webhook delivery. Returning an error
// makes the HTTP handler answer non-2xx so the provider redelivers.
func (s *WebhookService) HandleEvent(ctx context.Context, payload *asaas.WebhookPayload, raw []byte) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleEvent")
	defer span.End()

	eventID := payload.ID
	if eventID == "" {
		// Older webhook versions omit the event id; the event type plus
		// payment id is unique per transition.
		eventID = fmt.Sprintf("%s:%s", payload.Event, payload.Payment.ID)
	}

	if s.cache != nil {
		if seen, err := s.cache.IsWebhookEventSeen(ctx, webhookProvider, eventID); err == nil && seen {
			util.WebhookEventsTotal.WithLabelValues(payload.Event, "duplicate").Inc()
			return nil
		}
	}

	existing, err := s.store.GetWebhookEventByProviderID(ctx, webhookProvider, eventID)
	if err != nil {
		return fmt.Errorf("failed to look up webhook event: %w", err)
	}
	if existing != nil && existing.Status == models.WebhookStatusSuccess {
		util.WebhookEventsTotal.WithLabelValues(payload.Event, "duplicate").Inc()
		s.markSeen(ctx, eventID)
		return nil
	}

	eventRow := existing
	if eventRow == nil {
		eventRow = &models.WebhookEvent{
			Provider:        webhookProvider,
			ProviderEventID: eventID,
			EventType:       payload.Event,
			Payload:         string(raw),
			Status:          models.WebhookStatusProcessing,
		}
		if err := s.store.CreateWebhookEvent(ctx, eventRow); err != nil {
			if store.IsUniqueViolation(err) {
				// A concurrent delivery won the insert race.
				util.WebhookEventsTotal.WithLabelValues(payload.Event, "duplicate").Inc()
				return nil
			}
			return fmt.Errorf("failed to record webhook event: %w", err)
		}
	}

	var outcome webhookOutcome
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = s.apply(ctx, payload)
		if err != nil {
			return err
		}
		return s.store.UpdateWebhookEventStatus(ctx, eventRow.ID, models.WebhookStatusSuccess, "")
	})
	if err != nil {
		// Mark outside the rolled-back transaction so the failure survives.
		if markErr := s.store.UpdateWebhookEventStatus(ctx, eventRow.ID, models.WebhookStatusFailed, err.Error()); markErr != nil {
			s.logger.Error("failed to mark webhook event failed",
				zap.String("event_id", eventID),
				zap.Error(markErr))
		}
		util.WebhookEventsTotal.WithLabelValues(payload.Event, "failed").Inc()
		return err
	}

	util.WebhookEventsTotal.WithLabelValues(payload.Event, outcome.result).Inc()
	s.markSeen(ctx, eventID)

	if outcome.orderID != "" && s.cache != nil {
		if err := s.cache.InvalidateCheckoutView(ctx, outcome.orderID); err != nil {
			s.logger.Warn("failed to invalidate checkout cache",
				zap.String("order_id", outcome.orderID),
				zap.Error(err))
		}
	}

	if outcome.result == "applied" {
		s.publishOutcome(ctx, outcome)
	}

	s.logger.Info("webhook event processed",
		zap.String("event_id", eventID),
		zap.String("event", payload.Event),
		zap.String("result", outcome.result),
		zap.String("order_id", outcome.orderID))

	return nil
}

// apply performs the state transition for one event inside the caller's
// transaction.
func (s *WebhookService) apply(ctx context.Context, payload *asaas.WebhookPayload) (webhookOutcome, error) {
	switch payload.Event {
	case asaas.EventPaymentReceived, asaas.EventPaymentConfirmed:
		return s.applyPaid(ctx, payload)
	case asaas.EventPaymentOverdue:
		return s.applyOverdue(ctx, payload)
	default:
		// Providers add event types over time; unknown ones are acknowledged
		// without side effects so they stop being redelivered.
		return webhookOutcome{result: "ignored", event: payload.Event}, nil
	}
}

func (s *WebhookService) applyPaid(ctx context.Context, payload *asaas.WebhookPayload) (webhookOutcome, error) {
	link, err := s.resolveLink(ctx, payload)
	if err != nil {
		return webhookOutcome{}, err
	}
	if link == nil {
		s.logger.Warn("webhook references unknown payment",
			zap.String("provider_payment_id", payload.Payment.ID),
			zap.String("external_reference", payload.Payment.ExternalReference))
		return webhookOutcome{result: "ignored", event: payload.Event}, nil
	}

	order, err := s.store.GetOrderByID(ctx, link.OrderID)
	if err != nil {
		return webhookOutcome{}, err
	}

	outcome := webhookOutcome{
		result:  "applied",
		orderID: order.ID,
		event:   payload.Event,
		amount:  payload.Payment.Value,
		method:  billingMethod(payload.Payment.BillingType),
		txID:    payload.Payment.ID,
	}

	if order.Status == models.OrderStatusPaid {
		outcome.result = "duplicate"
		return outcome, nil
	}

	if link.Status != models.PaymentLinkStatusPaid {
		if err := s.store.UpdatePaymentLinkStatus(ctx, link.ID, models.PaymentLinkStatusPaid); err != nil {
			return webhookOutcome{}, fmt.Errorf("failed to mark payment link paid: %w", err)
		}
	}
	if err := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaid); err != nil {
		return webhookOutcome{}, fmt.Errorf("failed to mark order paid: %w", err)
	}

	confirmed, err := s.store.HasConfirmedTransaction(ctx, order.ID, payload.Payment.ID)
	if err != nil {
		return webhookOutcome{}, fmt.Errorf("failed to check existing transactions: %w", err)
	}
	if !confirmed {
		tx := &models.PaymentTransaction{
			OrderID:      order.ID,
			ProviderTxID: payload.Payment.ID,
			Method:       outcome.method,
			Status:       models.TransactionStatusConfirmed,
			Amount:       payload.Payment.Value,
		}
		if err := s.store.CreatePaymentTransaction(ctx, tx); err != nil {
			return webhookOutcome{}, fmt.Errorf("failed to record confirmed transaction: %w", err)
		}
	}

	return outcome, nil
}

func (s *WebhookService) applyOverdue(ctx context.Context, payload *asaas.WebhookPayload) (webhookOutcome, error) {
	link, err := s.resolveLink(ctx, payload)
	if err != nil {
		return webhookOutcome{}, err
	}
	if link == nil {
		return webhookOutcome{result: "ignored", event: payload.Event}, nil
	}

	order, err := s.store.GetOrderByID(ctx, link.OrderID)
	if err != nil {
		return webhookOutcome{}, err
	}

	outcome := webhookOutcome{
		result:  "applied",
		orderID: order.ID,
		event:   payload.Event,
	}

	// A paid order never expires; the overdue notice raced the payment.
	if order.Status != models.OrderStatusPending {
		outcome.result = "duplicate"
		return outcome, nil
	}

	if err := s.store.UpdatePaymentLinkStatus(ctx, link.ID, models.PaymentLinkStatusOverdue); err != nil {
		return webhookOutcome{}, fmt.Errorf("failed to mark payment link overdue: %w", err)
	}
	if err := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusExpired); err != nil {
		return webhookOutcome{}, fmt.Errorf("failed to mark order expired: %w", err)
	}

	return outcome, nil
}

// resolveLink finds the local payment link for a webhook, first by provider
// payment id, then by the order id echoed back as external reference.
func (s *WebhookService) resolveLink(ctx context.Context, payload *asaas.WebhookPayload) (*models.PaymentLink, error) {
	link, err := s.store.GetPaymentLinkByProviderPaymentID(ctx, payload.Payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment link: %w", err)
	}
	if link != nil {
		return link, nil
	}

	if ref := payload.Payment.ExternalReference; ref != "" {
		link, err := s.store.GetPaymentLinkByOrderID(ctx, ref)
		if err == nil && link != nil && link.ProviderPaymentID == payload.Payment.ID {
			return link, nil
		}
	}
	return nil, nil
}

func (s *WebhookService) publishOutcome(ctx context.Context, outcome webhookOutcome) {
	now := time.Now()

	switch outcome.event {
	case asaas.EventPaymentReceived, asaas.EventPaymentConfirmed:
		util.OrdersPaidTotal.Inc()
		util.PaymentConfirmedTotal.WithLabelValues(outcome.method).Inc()

		paid := &models.OrderPaidEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderPaid,
				Timestamp: now,
			},
			OrderID:      outcome.orderID,
			Amount:       outcome.amount,
			Method:       outcome.method,
			ProviderTxID: outcome.txID,
		}
		if err := s.publisher.PublishOrderPaid(ctx, paid); err != nil {
			s.logger.Error("failed to publish OrderPaid event", zap.Error(err))
		}

		confirmed := &models.PaymentConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentConfirmed,
				Timestamp: now,
			},
			OrderID:      outcome.orderID,
			Amount:       outcome.amount,
			Method:       outcome.method,
			ProviderTxID: outcome.txID,
		}
		if err := s.publisher.PublishPaymentConfirmed(ctx, confirmed); err != nil {
			s.logger.Error("failed to publish PaymentConfirmed event", zap.Error(err))
		}

	case asaas.EventPaymentOverdue:
		util.OrdersExpiredTotal.Inc()

		expired := &models.OrderExpiredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderExpired,
				Timestamp: now,
			},
			OrderID: outcome.orderID,
		}
		if err := s.publisher.PublishOrderExpired(ctx, expired); err != nil {
			s.logger.Error("failed to publish OrderExpired event", zap.Error(err))
		}
	}
}

func (s *WebhookService) markSeen(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.MarkWebhookEventSeen(ctx, webhookProvider, eventID, webhookSeenTTL); err != nil {
		s.logger.Warn("failed to mark webhook event in cache",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

// billingMethod maps the provider billing type onto the local payment method
// vocabulary.
func billingMethod(billingType string) string {
	if billingType == "PIX" {
		return models.PaymentMethodPix
	}
	return models.PaymentMethodCreditCard
}
