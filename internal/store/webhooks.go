package store

import (
	"context"
	"database/sql"

	"checkout-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GetWebhookEventByProviderID retrieves a webhook event by the
// provider-assigned event id. Returns nil when the event was never seen.
func (s *Store) GetWebhookEventByProviderID(ctx context.Context, provider, providerEventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := sqlx.GetContext(ctx, s.ext(ctx), &event, `
		SELECT id, provider, provider_event_id, event_type, payload, status,
			COALESCE(error, '') AS error, created_at, updated_at
		FROM webhook_events WHERE provider = $1 AND provider_event_id = $2`,
		provider, providerEventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateWebhookEvent records an inbound event before any state mutation.
// The (provider, provider_event_id) unique constraint is the idempotency
// safety net: a concurrent redelivery fails here with a unique violation.
func (s *Store) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Status == "" {
		event.Status = models.WebhookStatusProcessing
	}

	row := s.ext(ctx).QueryRowxContext(ctx, `
		INSERT INTO webhook_events (id, provider, provider_event_id, event_type, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		event.ID, event.Provider, event.ProviderEventID, event.EventType,
		event.Payload, event.Status)
	return row.Scan(&event.CreatedAt, &event.UpdatedAt)
}

// UpdateWebhookEventStatus finishes the event lifecycle
// (PROCESSING -> SUCCESS/FAILED).
func (s *Store) UpdateWebhookEventStatus(ctx context.Context, eventID, status, errMsg string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE webhook_events SET status = $1, error = NULLIF($2, ''), updated_at = NOW() WHERE id = $3",
		status, errMsg, eventID)
	return err
}
