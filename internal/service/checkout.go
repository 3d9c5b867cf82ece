package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/gateway/asaas"
	"checkout-service/internal/gateway/maxipago"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrOrderNotPending guards every mutation of an order that already left the
// PENDING state.
var ErrOrderNotPending = errors.New("order is not pending")

// CheckoutService drives the resumable public checkout: partial saves collect
// identity, address and notes without gateway side effects; the final save
// creates the hosted invoice at most once; the direct payment step charges
// synchronously through the tokenized gateway.
type CheckoutService struct {
	store     Store
	identity  *IdentityResolver
	invoice   InvoiceGateway
	gateway   CardGateway
	publisher EventPublisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store Store,
	identity *IdentityResolver,
	invoice InvoiceGateway,
	gateway CardGateway,
	publisher EventPublisher,
) *CheckoutService {
	return &CheckoutService{
		store:     store,
		identity:  identity,
		invoice:   invoice,
		gateway:   gateway,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// AddressInput is the address block of a checkout save.
type AddressInput struct {
	Street     string `json:"street" binding:"required"`
	Number     string `json:"number" binding:"required"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	ZipCode    string `json:"zipCode" binding:"required"`
}

// CheckoutSaveRequest is the body of POST /checkout/:id. Every field is
// optional on partial saves; the merge only touches submitted fields.
type CheckoutSaveRequest struct {
	Partial        bool          `json:"partial"`
	Name           string        `json:"name"`
	CPF            string        `json:"cpf"`
	RG             string        `json:"rg"`
	BirthDate      string        `json:"birthDate"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone"`
	Address        *AddressInput `json:"address,omitempty"`
	AddressID      string        `json:"addressId,omitempty"`
	DeliveryMethod string        `json:"deliveryMethod,omitempty"`
	Notes          string        `json:"notes,omitempty"`
}

// CheckoutSaveResponse covers the three response shapes of the save call:
// partial short-circuit (customerFound), plain partial save, and final save
// with the hosted invoice URL.
type CheckoutSaveResponse struct {
	Success       bool             `json:"success"`
	CustomerFound bool             `json:"customerFound,omitempty"`
	Customer      *models.Customer `json:"customer,omitempty"`
	OrderID       string           `json:"orderId,omitempty"`
	Message       string           `json:"message,omitempty"`
	RedirectURL   string           `json:"redirectUrl,omitempty"`
}

// Save applies a partial or final checkout submission.
func (s *CheckoutService) Save(ctx context.Context, orderID string, req *CheckoutSaveRequest) (*CheckoutSaveResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Save")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !req.Partial && order.Status != models.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	customer, err := s.store.GetCustomerByID(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}

	if req.CPF != "" && !ValidCPF(req.CPF) {
		return nil, fmt.Errorf("invalid cpf")
	}

	var (
		resolved *models.Customer
		found    bool
	)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		in := IdentityInput{
			Name:      req.Name,
			Phone:     req.Phone,
			Email:     req.Email,
			CPF:       req.CPF,
			RG:        req.RG,
			BirthDate: parseBirthDate(req.BirthDate),
		}

		var err error
		resolved, found, err = s.identity.ResolveForOrder(ctx, order, customer, in)
		if err != nil {
			return err
		}

		if err := s.applyAddress(ctx, order, resolved, req); err != nil {
			return err
		}

		if req.Notes != "" {
			note := &models.OrderNote{
				OrderID: order.ID,
				Author:  models.NoteAuthorCustomer,
				Text:    req.Notes,
			}
			if err := s.store.CreateOrderNote(ctx, note); err != nil {
				return fmt.Errorf("failed to save note: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if found {
		// The order was re-pointed at an existing customer; the orphaned
		// placeholder is deleted only after that transaction committed.
		s.identity.CleanupPlaceholder(ctx, order.ID, customer)
	}

	if req.Partial {
		util.CheckoutSavesTotal.WithLabelValues("partial").Inc()
		if found {
			// A known customer matched the submitted CPF. Let the caller
			// skip the remaining collection steps and confirm instead.
			util.CheckoutCustomerFoundTotal.Inc()
			return &CheckoutSaveResponse{
				Success:       true,
				CustomerFound: true,
				Customer:      resolved,
				OrderID:       order.ID,
			}, nil
		}
		return &CheckoutSaveResponse{Success: true, Message: "checkout saved"}, nil
	}

	util.CheckoutSavesTotal.WithLabelValues("final").Inc()

	redirectURL, err := s.finalize(ctx, order, resolved)
	if err != nil {
		return nil, err
	}
	return &CheckoutSaveResponse{Success: true, RedirectURL: redirectURL}, nil
}

// applyAddress binds the order's delivery address and recomputes shipping
// whenever the address or delivery method changes. Submitting a new address
// unsets the previous primary; an address with the same street, number and
// zip code is reused instead of duplicated.
func (s *CheckoutService) applyAddress(ctx context.Context, order *models.Order, customer *models.Customer, req *CheckoutSaveRequest) error {
	var addr *models.Address

	switch {
	case req.AddressID != "":
		a, err := s.store.GetAddressByID(ctx, req.AddressID)
		if err != nil {
			return err
		}
		// The checkout page is unauthenticated; the order id is the only
		// credential. Never bind an address owned by someone else.
		if a.CustomerID != customer.ID {
			return fmt.Errorf("address does not belong to this order's customer")
		}
		addr = a

	case req.Address != nil:
		existing, err := s.store.FindAddress(ctx, customer.ID, req.Address.Street, req.Address.Number, req.Address.ZipCode)
		if err != nil {
			return fmt.Errorf("failed to look up address: %w", err)
		}

		if err := s.store.ClearPrimaryAddress(ctx, customer.ID); err != nil {
			return fmt.Errorf("failed to clear primary address: %w", err)
		}

		if existing != nil {
			if err := s.store.SetPrimaryAddress(ctx, existing.ID); err != nil {
				return fmt.Errorf("failed to set primary address: %w", err)
			}
			addr = existing
		} else {
			addr = &models.Address{
				CustomerID: customer.ID,
				Street:     req.Address.Street,
				Number:     req.Address.Number,
				Complement: req.Address.Complement,
				District:   req.Address.District,
				City:       req.Address.City,
				State:      req.Address.State,
				ZipCode:    req.Address.ZipCode,
				IsPrimary:  true,
			}
			if err := s.store.CreateAddress(ctx, addr); err != nil {
				return fmt.Errorf("failed to create address: %w", err)
			}
		}
	}

	if addr == nil && req.DeliveryMethod == "" {
		return nil
	}

	deliveryMethod := order.DeliveryMethod
	if req.DeliveryMethod != "" {
		deliveryMethod = req.DeliveryMethod
	}

	addressID := order.AddressID
	city := ""
	if addr != nil {
		addressID = &addr.ID
		city = addr.City
	} else if order.AddressID != nil {
		if current, err := s.store.GetAddressByID(ctx, *order.AddressID); err == nil {
			city = current.City
		}
	}

	shipping := ResolveShipping(deliveryMethod, order.ShippingType, order.ShippingValue, city)
	if err := s.store.UpdateOrderDelivery(ctx, order.ID, deliveryMethod, shipping, addressID); err != nil {
		return fmt.Errorf("failed to update order delivery: %w", err)
	}
	order.DeliveryMethod = deliveryMethod
	order.ShippingValue = shipping
	order.AddressID = addressID
	return nil
}

// finalize creates the hosted invoice at most once per order. A payment link
// that already carries a provider payment id is returned unchanged, which
// makes concurrent duplicate submissions safe by inspection.
func (s *CheckoutService) finalize(ctx context.Context, order *models.Order, customer *models.Customer) (string, error) {
	link, err := s.store.GetPaymentLinkByOrderID(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if link.ProviderPaymentID != "" {
		return link.URL, nil
	}

	gatewayID, err := s.invoice.EnsureCustomer(ctx, asaas.CustomerInput{
		Name:  customer.Name,
		CPF:   customer.CPF,
		Email: customer.Email,
		Phone: customer.Phone,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create remote customer: %w", err)
	}
	if gatewayID != customer.GatewayCustomer {
		if err := s.store.SetGatewayCustomerID(ctx, customer.ID, gatewayID); err != nil {
			return "", fmt.Errorf("failed to store gateway customer id: %w", err)
		}
	}

	city := ""
	if order.AddressID != nil {
		if addr, err := s.store.GetAddressByID(ctx, *order.AddressID); err == nil {
			city = addr.City
		}
	}

	shipping := ResolveShipping(order.DeliveryMethod, order.ShippingType, order.ShippingValue, city)
	value := Round2(order.TotalValue + shipping)

	// The provider only understands absolute discounts; percentage discounts
	// are converted before the call.
	var discount *asaas.Discount
	if amount := Round2(DiscountAmount(order.TotalValue, order.DiscountType, order.DiscountValue)); amount > 0 {
		discount = &asaas.Discount{Value: amount, Type: models.DiscountTypeFixed}
	}

	due := s.invoice.DueDate(time.Now())
	payment, err := s.invoice.CreatePayment(ctx, &asaas.PaymentRequest{
		Customer:          gatewayID,
		Value:             value,
		DueDate:           due.Format("2006-01-02"),
		Description:       fmt.Sprintf("Pedido %s", order.ID),
		ExternalReference: order.ID,
		Discount:          discount,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create payment link: %w", err)
	}

	link.Status = models.PaymentLinkStatusPending
	link.ProviderPaymentID = payment.ID
	link.URL = payment.InvoiceURL
	link.DueDate = &due
	if err := s.store.PopulatePaymentLink(ctx, link); err != nil {
		return "", fmt.Errorf("failed to store payment link: %w", err)
	}

	util.InvoicesCreatedTotal.Inc()
	s.logger.Info("payment link created",
		zap.String("order_id", order.ID),
		zap.String("provider_payment_id", payment.ID))

	event := &models.PaymentLinkCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentLinkCreated,
			Timestamp: time.Now(),
		},
		OrderID:           order.ID,
		ProviderPaymentID: payment.ID,
		URL:               payment.InvoiceURL,
	}
	if err := s.publisher.PublishPaymentLinkCreated(ctx, event); err != nil {
		s.logger.Error("failed to publish PaymentLinkCreated event", zap.Error(err))
	}

	return payment.InvoiceURL, nil
}

// CardDataRequest is the card block of a direct payment. The card number is
// tokenized at the gateway and never persisted.
type CardDataRequest struct {
	Number          string `json:"number" binding:"required"`
	HolderName      string `json:"holderName" binding:"required"`
	ExpirationMonth string `json:"expirationMonth" binding:"required"`
	ExpirationYear  string `json:"expirationYear" binding:"required"`
	CVV             string `json:"cvv" binding:"required"`
	Installments    int    `json:"installments"`
}

// DirectPaymentRequest is the body of POST /checkout/:id/payment.
type DirectPaymentRequest struct {
	PaymentMethod string           `json:"paymentMethod" binding:"required"`
	CardData      *CardDataRequest `json:"cardData,omitempty"`
}

// PixPayload is the copy-and-paste code and QR image returned for a PIX
// charge.
type PixPayload struct {
	Code   string `json:"code"`
	QRCode string `json:"qrCode,omitempty"`
	URL    string `json:"url,omitempty"`
}

// DirectPaymentResponse reports the outcome of a synchronous charge. Declines
// are reported with Success=false, not as errors.
type DirectPaymentResponse struct {
	Success       bool        `json:"success"`
	TransactionID string      `json:"transactionId,omitempty"`
	Amount        float64     `json:"amount"`
	Message       string      `json:"message,omitempty"`
	Pix           *PixPayload `json:"pix,omitempty"`
}

// DirectPayment charges the order synchronously through the tokenized
// gateway. The amount is always computed server side from the stored order;
// nothing submitted by the client changes it.
func (s *CheckoutService) DirectPayment(ctx context.Context, orderID string, req *DirectPaymentRequest) (*DirectPaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.DirectPayment")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, ErrOrderNotPending
	}

	customer, err := s.store.GetCustomerByID(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}

	var addr *models.Address
	if order.AddressID != nil {
		if a, err := s.store.GetAddressByID(ctx, *order.AddressID); err == nil {
			addr = a
		}
	}

	city := ""
	if addr != nil {
		city = addr.City
	}
	amount := ComputeCharge(ChargeInput{
		TotalValue:     order.TotalValue,
		ShippingValue:  order.ShippingValue,
		ShippingType:   order.ShippingType,
		DeliveryMethod: order.DeliveryMethod,
		DiscountType:   order.DiscountType,
		DiscountValue:  order.DiscountValue,
		DeliveryCity:   city,
	})
	cents := AmountInCents(amount)

	buyer := s.buyerFrom(order, customer, addr)

	util.PaymentAttemptsTotal.WithLabelValues(req.PaymentMethod).Inc()

	switch req.PaymentMethod {
	case models.PaymentMethodPix:
		return s.payWithPix(ctx, order, amount, cents, buyer)
	case models.PaymentMethodCreditCard:
		if req.CardData == nil {
			return nil, fmt.Errorf("card data is required for credit card payments")
		}
		return s.payWithCard(ctx, order, amount, cents, buyer, req.CardData)
	default:
		return nil, fmt.Errorf("unsupported payment method: %s", req.PaymentMethod)
	}
}

func (s *CheckoutService) payWithPix(ctx context.Context, order *models.Order, amount float64, cents int64, buyer maxipago.Buyer) (*DirectPaymentResponse, error) {
	result, err := s.gateway.DirectPixCharge(ctx, &maxipago.PixChargeRequest{
		ReferenceNum:      order.ID,
		AmountInCents:     cents,
		Buyer:             buyer,
		ExpirationSeconds: 86400,
	})
	if err != nil {
		s.recordDecline(ctx, order, models.PaymentMethodPix, amount, maxipago.StepCharge, err)
		return &DirectPaymentResponse{Success: false, Amount: amount, Message: declineMessage(err)}, nil
	}

	// PIX stays PENDING until the payer completes the transfer; confirmation
	// arrives through the reconciliation webhook.
	tx := &models.PaymentTransaction{
		OrderID:      order.ID,
		Method:       models.PaymentMethodPix,
		Amount:       amount,
		Status:       models.TransactionStatusPending,
		ProviderTxID: result.TransactionID,
		PixPayload:   result.PixEMV,
	}
	if err := s.store.CreatePaymentTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record pix transaction: %w", err)
	}

	s.logger.Info("pix charge created",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", result.TransactionID))

	return &DirectPaymentResponse{
		Success:       true,
		TransactionID: result.TransactionID,
		Amount:        amount,
		Pix: &PixPayload{
			Code:   result.PixEMV,
			QRCode: result.PixImage,
			URL:    result.PixURL,
		},
	}, nil
}

func (s *CheckoutService) payWithCard(ctx context.Context, order *models.Order, amount float64, cents int64, buyer maxipago.Buyer, card *CardDataRequest) (*DirectPaymentResponse, error) {
	installments := card.Installments
	if installments <= 0 {
		installments = 1
	}

	result, err := s.gateway.ChargeTokenizedCard(ctx, &maxipago.CardChargeRequest{
		ReferenceNum:  order.ID,
		AmountInCents: cents,
		Buyer:         buyer,
		Installments:  installments,
		Card: maxipago.CardData{
			Number:     card.Number,
			HolderName: card.HolderName,
			ExpMonth:   card.ExpirationMonth,
			ExpYear:    card.ExpirationYear,
			CVV:        card.CVV,
		},
	})
	if err != nil {
		s.recordDecline(ctx, order, models.PaymentMethodCreditCard, amount, chargeStep(err), err)
		return &DirectPaymentResponse{Success: false, Amount: amount, Message: declineMessage(err)}, nil
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		tx := &models.PaymentTransaction{
			OrderID:      order.ID,
			Method:       models.PaymentMethodCreditCard,
			Amount:       amount,
			Status:       models.TransactionStatusConfirmed,
			ProviderTxID: result.TransactionID,
			AuthCode:     result.AuthCode,
			CardLast4:    cardLast4(card.Number),
			Installments: installments,
		}
		if err := s.store.CreatePaymentTransaction(ctx, tx); err != nil {
			return fmt.Errorf("failed to record card transaction: %w", err)
		}
		if err := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaid); err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		if link, err := s.store.GetPaymentLinkByOrderID(ctx, order.ID); err == nil {
			if err := s.store.UpdatePaymentLinkStatus(ctx, link.ID, models.PaymentLinkStatusPaid); err != nil {
				return fmt.Errorf("failed to mark payment link paid: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		// The charge went through but the local state did not commit. Flag it
		// for manual reconciliation instead of pretending the payment failed.
		util.ManualReconciliationTotal.Inc()
		s.logger.Error("card charge approved but local state update failed",
			zap.String("marker", "manual_reconciliation"),
			zap.String("order_id", order.ID),
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err))
		return nil, err
	}

	util.PaymentConfirmedTotal.WithLabelValues(models.PaymentMethodCreditCard).Inc()
	util.OrdersPaidTotal.Inc()
	s.logger.Info("card charge approved",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", result.TransactionID),
		zap.String("auth_code", result.AuthCode))

	now := time.Now()
	paid := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: now,
		},
		OrderID:      order.ID,
		Amount:       amount,
		Method:       models.PaymentMethodCreditCard,
		ProviderTxID: result.TransactionID,
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
		OrderID:      order.ID,
		Amount:       amount,
		Method:       models.PaymentMethodCreditCard,
		ProviderTxID: result.TransactionID,
	}
	if err := s.publisher.PublishPaymentConfirmed(ctx, confirmed); err != nil {
		s.logger.Error("failed to publish PaymentConfirmed event", zap.Error(err))
	}

	return &DirectPaymentResponse{
		Success:       true,
		TransactionID: result.TransactionID,
		Amount:        amount,
	}, nil
}

// recordDecline stores a FAILED transaction row for a declined or errored
// charge attempt and publishes the decline event. Declines are an expected
// outcome; recording them must not fail the request.
func (s *CheckoutService) recordDecline(ctx context.Context, order *models.Order, method string, amount float64, step string, cause error) {
	util.PaymentDeclinedTotal.WithLabelValues(method, step).Inc()

	tx := &models.PaymentTransaction{
		OrderID:    order.ID,
		Method:     method,
		Amount:     amount,
		Status:     models.TransactionStatusFailed,
		FailReason: fmt.Sprintf("%s: %s", step, declineMessage(cause)),
	}
	if err := s.store.CreatePaymentTransaction(ctx, tx); err != nil {
		s.logger.Error("failed to record declined transaction",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	s.logger.Warn("payment declined",
		zap.String("order_id", order.ID),
		zap.String("method", method),
		zap.String("step", step),
		zap.Error(cause))

	event := &models.PaymentDeclinedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentDeclined,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		Method:  method,
		Reason:  fmt.Sprintf("%s: %s", step, declineMessage(cause)),
	}
	if err := s.publisher.PublishPaymentDeclined(ctx, event); err != nil {
		s.logger.Error("failed to publish PaymentDeclined event", zap.Error(err))
	}
}

func (s *CheckoutService) buyerFrom(order *models.Order, customer *models.Customer, addr *models.Address) maxipago.Buyer {
	buyer := maxipago.Buyer{
		Name:  customer.Name,
		CPF:   customer.CPF,
		Email: customer.Email,
		Phone: customer.Phone,
	}
	if addr != nil {
		buyer.Address = fmt.Sprintf("%s, %s", addr.Street, addr.Number)
		buyer.City = addr.City
		buyer.State = addr.State
		buyer.ZipCode = addr.ZipCode
	}
	return buyer
}

// chargeStep maps a charge failure to the tokenization step that caused it,
// so operators can tell a consumer-registration problem from a decline.
func chargeStep(err error) string {
	switch {
	case errors.Is(err, maxipago.ErrRegisterConsumer):
		return maxipago.StepRegisterConsumer
	case errors.Is(err, maxipago.ErrTokenizeCard):
		return maxipago.StepTokenizeCard
	default:
		return maxipago.StepCharge
	}
}

func cardLast4(number string) string {
	digits := maxipago.DigitsOnly(number)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}

func declineMessage(err error) string {
	if err == nil {
		return "payment declined"
	}
	return err.Error()
}

// CheckoutView is everything the public checkout page needs to render.
type CheckoutView struct {
	Order        *models.Order               `json:"order"`
	Customer     *models.Customer            `json:"customer"`
	Addresses    []models.Address            `json:"addresses"`
	Items        []models.OrderItem          `json:"items"`
	Notes        []models.OrderNote          `json:"notes"`
	PaymentLink  *models.PaymentLink         `json:"paymentLink,omitempty"`
	Transactions []models.PaymentTransaction `json:"transactions,omitempty"`
	Amount       float64                     `json:"amount"`
	Shipping     float64                     `json:"shipping"`
	Discount     float64                     `json:"discount"`
}

// GetCheckoutView assembles the full checkout state for an order.
func (s *CheckoutService) GetCheckoutView(ctx context.Context, orderID string) (*CheckoutView, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.GetCheckoutView")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	customer, err := s.store.GetCustomerByID(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}
	addresses, err := s.store.GetAddressesByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.GetOrderNotesByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	link, err := s.store.GetPaymentLinkByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.store.GetPaymentTransactionsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	city := ""
	if order.AddressID != nil {
		for i := range addresses {
			if addresses[i].ID == *order.AddressID {
				city = addresses[i].City
				break
			}
		}
	}

	shipping := ResolveShipping(order.DeliveryMethod, order.ShippingType, order.ShippingValue, city)
	discount := Round2(DiscountAmount(order.TotalValue, order.DiscountType, order.DiscountValue))

	return &CheckoutView{
		Order:        order,
		Customer:     customer,
		Addresses:    addresses,
		Items:        items,
		Notes:        notes,
		PaymentLink:  link,
		Transactions: transactions,
		Amount: ComputeCharge(ChargeInput{
			TotalValue:     order.TotalValue,
			ShippingValue:  order.ShippingValue,
			ShippingType:   order.ShippingType,
			DeliveryMethod: order.DeliveryMethod,
			DiscountType:   order.DiscountType,
			DiscountValue:  order.DiscountValue,
			DeliveryCity:   city,
		}),
		Shipping: shipping,
		Discount: discount,
	}, nil
}

// DeleteAddress removes a saved address from the checkout. The order must
// still be pending and the address must belong to the order's customer.
func (s *CheckoutService) DeleteAddress(ctx context.Context, orderID, addressID string) error {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return ErrOrderNotPending
	}

	addr, err := s.store.GetAddressByID(ctx, addressID)
	if err != nil {
		return err
	}
	if addr.CustomerID != order.CustomerID {
		return fmt.Errorf("address does not belong to this order's customer")
	}

	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if order.AddressID != nil && *order.AddressID == addressID {
			if err := s.store.ClearOrderAddress(ctx, order.ID); err != nil {
				return fmt.Errorf("failed to unbind order address: %w", err)
			}
		}
		if err := s.store.DeleteAddress(ctx, addressID); err != nil {
			return fmt.Errorf("failed to delete address: %w", err)
		}
		return nil
	})
}

// SetAttachment stores the public URL of an uploaded prescription image.
func (s *CheckoutService) SetAttachment(ctx context.Context, orderID, url string) error {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return ErrOrderNotPending
	}
	return s.store.SetOrderAttachment(ctx, order.ID, url)
}

func parseBirthDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
