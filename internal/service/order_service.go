package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles the attendant-side order lifecycle: opening orders
// with their compounded-drug items, reading them back and canceling them.
type OrderService struct {
	store         Store
	identity      *IdentityResolver
	publisher     EventPublisher
	publicBaseURL string
	logger        *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store Store, identity *IdentityResolver, publisher EventPublisher, publicBaseURL string) *OrderService {
	return &OrderService{
		store:         store,
		identity:      identity,
		publisher:     publisher,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        util.GetLogger(),
	}
}

// OrderItemRequest is one compounded-drug line on a new order.
type OrderItemRequest struct {
	Name      string   `json:"name" binding:"required"`
	Dosage    string   `json:"dosage"`
	Actives   []string `json:"actives"`
	UnitPrice float64  `json:"unitPrice" binding:"required,gt=0"`
	Quantity  int      `json:"quantity" binding:"required,min=1"`
}

// CustomerRequest optionally identifies the customer at order creation. When
// absent a placeholder customer is created and checkout collects the
// identity later.
type CustomerRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	CPF   string `json:"cpf"`
}

// CreateOrderRequest is the body of POST /api/v1/orders.
type CreateOrderRequest struct {
	AttendantID   string             `json:"attendantId" binding:"required"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	Customer      *CustomerRequest   `json:"customer,omitempty"`
	ShippingValue float64            `json:"shippingValue"`
	ShippingType  string             `json:"shippingType"`
	DiscountValue float64            `json:"discountValue"`
	DiscountType  string             `json:"discountType"`
	Notes         string             `json:"notes,omitempty"`
}

// CreateOrderResponse returns the new order and its public checkout URL.
type CreateOrderResponse struct {
	OrderID     string  `json:"orderId"`
	Status      string  `json:"status"`
	TotalValue  float64 `json:"totalValue"`
	CheckoutURL string  `json:"checkoutUrl"`
}

// CreateOrder opens a PENDING order with its items, customer (real or
// placeholder) and a draft payment link, and returns the checkout URL the
// attendant sends to the customer.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	total := 0.0
	for _, item := range req.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	total = Round2(total)

	shippingType := req.ShippingType
	if shippingType == "" {
		shippingType = models.ShippingTypeDynamic
	}

	var order *models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var customer *models.Customer
		var err error
		if req.Customer != nil {
			customer, err = s.identity.FindOrCreate(ctx, req.Customer.Name, req.Customer.Phone, req.Customer.Email, req.Customer.CPF)
		} else {
			customer, err = s.identity.CreateAnonymous(ctx)
		}
		if err != nil {
			return err
		}

		order = &models.Order{
			AttendantID:   req.AttendantID,
			CustomerID:    customer.ID,
			Status:        models.OrderStatusPending,
			TotalValue:    total,
			ShippingValue: req.ShippingValue,
			ShippingType:  shippingType,
			DiscountValue: req.DiscountValue,
			DiscountType:  req.DiscountType,
		}
		if err := s.store.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, item := range req.Items {
			orderItem := &models.OrderItem{
				OrderID:   order.ID,
				Name:      item.Name,
				Dosage:    item.Dosage,
				Actives:   item.Actives,
				UnitPrice: item.UnitPrice,
				Quantity:  item.Quantity,
			}
			if err := s.store.CreateOrderItem(ctx, orderItem); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		if req.Notes != "" {
			note := &models.OrderNote{
				OrderID: order.ID,
				Author:  models.NoteAuthorAttendant,
				Text:    req.Notes,
			}
			if err := s.store.CreateOrderNote(ctx, note); err != nil {
				return fmt.Errorf("failed to create order note: %w", err)
			}
		}

		// The draft link reserves the 1:1 slot; provider data only arrives on
		// explicit checkout submission.
		link := &models.PaymentLink{
			OrderID: order.ID,
			Status:  models.PaymentLinkStatusDraft,
		}
		if err := s.store.CreatePaymentLink(ctx, link); err != nil {
			return fmt.Errorf("failed to create payment link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("attendant_id", order.AttendantID),
		zap.Float64("total_value", order.TotalValue))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		AttendantID: order.AttendantID,
		CustomerID:  order.CustomerID,
		TotalValue:  order.TotalValue,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("failed to publish OrderCreated event", zap.Error(err))
	}

	return &CreateOrderResponse{
		OrderID:     order.ID,
		Status:      order.Status,
		TotalValue:  order.TotalValue,
		CheckoutURL: fmt.Sprintf("%s/checkout/%s", s.publicBaseURL, order.ID),
	}, nil
}

// OrderView is the attendant-side read model of an order.
type OrderView struct {
	Order        *models.Order               `json:"order"`
	Customer     *models.Customer            `json:"customer"`
	Items        []models.OrderItem          `json:"items"`
	Notes        []models.OrderNote          `json:"notes"`
	PaymentLink  *models.PaymentLink         `json:"paymentLink"`
	Transactions []models.PaymentTransaction `json:"transactions"`
}

// GetOrder retrieves an order aggregate by id.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderView, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	customer, err := s.store.GetCustomerByID(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.GetOrderNotesByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	link, err := s.store.GetPaymentLinkByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.store.GetPaymentTransactionsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderView{
		Order:        order,
		Customer:     customer,
		Items:        items,
		Notes:        notes,
		PaymentLink:  link,
		Transactions: transactions,
	}, nil
}

// CancelOrder moves a pending order to CANCELED. Paid and expired orders are
// final.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) error {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return ErrOrderNotPending
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusCanceled); err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	s.logger.Info("order canceled", zap.String("order_id", orderID))
	return nil
}

func validateOrderRequest(req *CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("order must have at least one item")
	}
	for _, item := range req.Items {
		if item.UnitPrice <= 0 {
			return fmt.Errorf("item %q must have a positive unit price", item.Name)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %q must have a positive quantity", item.Name)
		}
	}
	switch req.DiscountType {
	case "", models.DiscountTypeFixed, models.DiscountTypePercentage:
	default:
		return fmt.Errorf("unknown discount type: %s", req.DiscountType)
	}
	switch req.ShippingType {
	case "", models.ShippingTypeDynamic, models.ShippingTypeFixed, models.ShippingTypeFree:
	default:
		return fmt.Errorf("unknown shipping type: %s", req.ShippingType)
	}
	if req.Customer != nil && req.Customer.CPF != "" && !ValidCPF(req.Customer.CPF) {
		return fmt.Errorf("invalid cpf")
	}
	return nil
}
