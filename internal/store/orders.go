package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, attendant_id, customer_id, status, total_value, shipping_value,
	shipping_type, discount_value, COALESCE(discount_type, '') AS discount_type,
	COALESCE(delivery_method, '') AS delivery_method, address_id,
	COALESCE(attachment_url, '') AS attachment_url, created_at, updated_at`

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	query := `
		INSERT INTO orders (id, attendant_id, customer_id, status, total_value, shipping_value,
			shipping_type, discount_value, discount_type, delivery_method, address_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
		RETURNING created_at, updated_at`

	row := s.ext(ctx).QueryRowxContext(ctx, query,
		order.ID, order.AttendantID, order.CustomerID, order.Status,
		order.TotalValue, order.ShippingValue, order.ShippingType,
		order.DiscountValue, order.DiscountType, order.DeliveryMethod, order.AddressID)
	return row.Scan(&order.CreatedAt, &order.UpdatedAt)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, s.ext(ctx), &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// UpdateOrderCustomer re-points an order at another customer
func (s *Store) UpdateOrderCustomer(ctx context.Context, orderID, customerID string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE orders SET customer_id = $1, updated_at = NOW() WHERE id = $2",
		customerID, orderID)
	return err
}

// UpdateOrderDelivery stores the delivery method, recomputed shipping value
// and address reference collected during checkout
func (s *Store) UpdateOrderDelivery(ctx context.Context, orderID, deliveryMethod string, shippingValue float64, addressID *string) error {
	_, err := s.ext(ctx).ExecContext(ctx, `
		UPDATE orders
		SET delivery_method = NULLIF($1, ''), shipping_value = $2, address_id = $3, updated_at = NOW()
		WHERE id = $4`,
		deliveryMethod, shippingValue, addressID, orderID)
	return err
}

// ClearOrderAddress detaches the order's delivery address reference
func (s *Store) ClearOrderAddress(ctx context.Context, orderID string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE orders SET address_id = NULL, updated_at = NOW() WHERE id = $1", orderID)
	return err
}

// SetOrderAttachment stores the uploaded attachment URL
func (s *Store) SetOrderAttachment(ctx context.Context, orderID, url string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE orders SET attachment_url = $1, updated_at = NOW() WHERE id = $2",
		url, orderID)
	return err
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	_, err := s.ext(ctx).ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, name, dosage, actives, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.OrderID, item.Name, item.Dosage, item.Actives, item.UnitPrice, item.Quantity)
	return err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := sqlx.SelectContext(ctx, s.ext(ctx), &items,
		"SELECT id, order_id, name, COALESCE(dosage, '') AS dosage, actives, unit_price, quantity FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// CreateOrderNote appends a note to an order
func (s *Store) CreateOrderNote(ctx context.Context, note *models.OrderNote) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}

	row := s.ext(ctx).QueryRowxContext(ctx, `
		INSERT INTO order_notes (id, order_id, author, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		note.ID, note.OrderID, note.Author, note.Text)
	return row.Scan(&note.CreatedAt)
}

// GetOrderNotesByOrderID retrieves all notes of an order
func (s *Store) GetOrderNotesByOrderID(ctx context.Context, orderID string) ([]models.OrderNote, error) {
	var notes []models.OrderNote
	err := sqlx.SelectContext(ctx, s.ext(ctx), &notes,
		"SELECT * FROM order_notes WHERE order_id = $1 ORDER BY created_at", orderID)
	return notes, err
}

// CreatePaymentLink creates the draft payment link for an order
func (s *Store) CreatePaymentLink(ctx context.Context, link *models.PaymentLink) error {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.Status == "" {
		link.Status = models.PaymentLinkStatusDraft
	}

	row := s.ext(ctx).QueryRowxContext(ctx, `
		INSERT INTO payment_links (id, order_id, status)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		link.ID, link.OrderID, link.Status)
	return row.Scan(&link.CreatedAt, &link.UpdatedAt)
}

// GetPaymentLinkByOrderID retrieves the payment link of an order
func (s *Store) GetPaymentLinkByOrderID(ctx context.Context, orderID string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	err := sqlx.GetContext(ctx, s.ext(ctx), &link, `
		SELECT id, order_id, status, COALESCE(provider_payment_id, '') AS provider_payment_id,
			COALESCE(url, '') AS url, due_date, created_at, updated_at
		FROM payment_links WHERE order_id = $1`, orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment link not found for order: %s", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetPaymentLinkByProviderPaymentID resolves a webhook payment id to the
// local payment link. Returns nil when unknown.
func (s *Store) GetPaymentLinkByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	err := sqlx.GetContext(ctx, s.ext(ctx), &link, `
		SELECT id, order_id, status, COALESCE(provider_payment_id, '') AS provider_payment_id,
			COALESCE(url, '') AS url, due_date, created_at, updated_at
		FROM payment_links WHERE provider_payment_id = $1`, providerPaymentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// PopulatePaymentLink stores the provider payment id, hosted URL and due
// date once the remote invoice is created
func (s *Store) PopulatePaymentLink(ctx context.Context, link *models.PaymentLink) error {
	_, err := s.ext(ctx).ExecContext(ctx, `
		UPDATE payment_links
		SET status = $1, provider_payment_id = $2, url = $3, due_date = $4, updated_at = NOW()
		WHERE id = $5`,
		link.Status, link.ProviderPaymentID, link.URL, link.DueDate, link.ID)
	return err
}

// UpdatePaymentLinkStatus mirrors the provider-side invoice status
func (s *Store) UpdatePaymentLinkStatus(ctx context.Context, linkID, status string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE payment_links SET status = $1, updated_at = NOW() WHERE id = $2",
		status, linkID)
	return err
}

// CreatePaymentTransaction appends a ledger row for an attempted charge
func (s *Store) CreatePaymentTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	row := s.ext(ctx).QueryRowxContext(ctx, `
		INSERT INTO payment_transactions (id, order_id, provider_tx_id, method, status, amount,
			card_last4, installments, auth_code, pix_payload, fail_reason)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''))
		RETURNING created_at`,
		tx.ID, tx.OrderID, tx.ProviderTxID, tx.Method, tx.Status, tx.Amount,
		tx.CardLast4, tx.Installments, tx.AuthCode, tx.PixPayload, tx.FailReason)
	return row.Scan(&tx.CreatedAt)
}

// GetPaymentTransactionsByOrderID retrieves the charge ledger of an order
func (s *Store) GetPaymentTransactionsByOrderID(ctx context.Context, orderID string) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := sqlx.SelectContext(ctx, s.ext(ctx), &txs, `
		SELECT id, order_id, COALESCE(provider_tx_id, '') AS provider_tx_id, method, status, amount,
			COALESCE(card_last4, '') AS card_last4, installments, COALESCE(auth_code, '') AS auth_code,
			COALESCE(pix_payload, '') AS pix_payload, COALESCE(fail_reason, '') AS fail_reason, created_at
		FROM payment_transactions WHERE order_id = $1 ORDER BY created_at`, orderID)
	return txs, err
}

// HasConfirmedTransaction reports whether the order already has a CONFIRMED
// ledger row for the given provider transaction id
func (s *Store) HasConfirmedTransaction(ctx context.Context, orderID, providerTxID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.ext(ctx), &exists, `
		SELECT EXISTS(
			SELECT 1 FROM payment_transactions
			WHERE order_id = $1 AND provider_tx_id = $2 AND status = 'CONFIRMED')`,
		orderID, providerTxID)
	return exists, err
}
