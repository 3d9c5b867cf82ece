package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout-service/internal/gateway/asaas"
	"checkout-service/internal/gateway/maxipago"
	"checkout-service/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// fakeStore is an in-memory Store for service tests. WithTx runs the
// callback directly; the fake has no rollback, which is fine for the happy
// and decline paths exercised here.
type fakeStore struct {
	mu sync.Mutex

	customers map[string]*models.Customer
	addresses map[string]*models.Address
	orders    map[string]*models.Order
	items     map[string][]models.OrderItem
	notes     map[string][]models.OrderNote
	links     map[string]*models.PaymentLink
	txs       map[string][]models.PaymentTransaction
	webhooks  []*models.WebhookEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: make(map[string]*models.Customer),
		addresses: make(map[string]*models.Address),
		orders:    make(map[string]*models.Order),
		items:     make(map[string][]models.OrderItem),
		notes:     make(map[string][]models.OrderNote),
		links:     make(map[string]*models.PaymentLink),
		txs:       make(map[string][]models.PaymentTransaction),
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CPF != "" {
		for _, existing := range f.customers {
			if existing.CPF == c.CPF {
				return &pq.Error{Code: "23505"}
			}
		}
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.customers[c.ID] = c
	return nil
}

func (f *fakeStore) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer not found: %s", id)
	}
	return c, nil
}

func (f *fakeStore) GetCustomerByCPF(ctx context.Context, cpf string) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c.CPF == cpf && cpf != "" {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.customers[c.ID]; !ok {
		return fmt.Errorf("customer not found: %s", c.ID)
	}
	f.customers[c.ID] = c
	return nil
}

func (f *fakeStore) SetGatewayCustomerID(ctx context.Context, customerID, gatewayID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[customerID]
	if !ok {
		return fmt.Errorf("customer not found: %s", customerID)
	}
	c.GatewayCustomer = gatewayID
	return nil
}

func (f *fakeStore) DeleteCustomer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.customers, id)
	return nil
}

func (f *fakeStore) CountOrdersByCustomer(ctx context.Context, customerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CreateAddress(ctx context.Context, a *models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()
	f.addresses[a.ID] = a
	return nil
}

func (f *fakeStore) GetAddressByID(ctx context.Context, id string) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[id]
	if !ok {
		return nil, fmt.Errorf("address not found: %s", id)
	}
	return a, nil
}

func (f *fakeStore) GetAddressesByCustomer(ctx context.Context, customerID string) ([]models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Address
	for _, a := range f.addresses {
		if a.CustomerID == customerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) FindAddress(ctx context.Context, customerID, street, number, zipCode string) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.addresses {
		if a.CustomerID == customerID && a.Street == street && a.Number == number && a.ZipCode == zipCode {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ClearPrimaryAddress(ctx context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.addresses {
		if a.CustomerID == customerID {
			a.IsPrimary = false
		}
	}
	return nil
}

func (f *fakeStore) SetPrimaryAddress(ctx context.Context, addressID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[addressID]
	if !ok {
		return fmt.Errorf("address not found: %s", addressID)
	}
	a.IsPrimary = true
	return nil
}

func (f *fakeStore) DeleteAddress(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.addresses, id)
	return nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	f.orders[o.ID] = o
	return nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	return o, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	o.Status = status
	return nil
}

func (f *fakeStore) UpdateOrderCustomer(ctx context.Context, orderID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	o.CustomerID = customerID
	return nil
}

func (f *fakeStore) UpdateOrderDelivery(ctx context.Context, orderID, deliveryMethod string, shippingValue float64, addressID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	o.DeliveryMethod = deliveryMethod
	o.ShippingValue = shippingValue
	o.AddressID = addressID
	return nil
}

func (f *fakeStore) ClearOrderAddress(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	o.AddressID = nil
	return nil
}

func (f *fakeStore) SetOrderAttachment(ctx context.Context, orderID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	o.AttachmentURL = url
	return nil
}

func (f *fakeStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	f.items[item.OrderID] = append(f.items[item.OrderID], *item)
	return nil
}

func (f *fakeStore) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[orderID], nil
}

func (f *fakeStore) CreateOrderNote(ctx context.Context, note *models.OrderNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	note.CreatedAt = time.Now()
	f.notes[note.OrderID] = append(f.notes[note.OrderID], *note)
	return nil
}

func (f *fakeStore) GetOrderNotesByOrderID(ctx context.Context, orderID string) ([]models.OrderNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes[orderID], nil
}

func (f *fakeStore) CreatePaymentLink(ctx context.Context, link *models.PaymentLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.Status == "" {
		link.Status = models.PaymentLinkStatusDraft
	}
	if _, ok := f.links[link.OrderID]; ok {
		return &pq.Error{Code: "23505"}
	}
	f.links[link.OrderID] = link
	return nil
}

func (f *fakeStore) GetPaymentLinkByOrderID(ctx context.Context, orderID string) (*models.PaymentLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[orderID]
	if !ok {
		return nil, fmt.Errorf("payment link not found for order: %s", orderID)
	}
	return link, nil
}

func (f *fakeStore) GetPaymentLinkByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.PaymentLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.ProviderPaymentID == providerPaymentID && providerPaymentID != "" {
			return link, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) PopulatePaymentLink(ctx context.Context, link *models.PaymentLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[link.OrderID] = link
	return nil
}

func (f *fakeStore) UpdatePaymentLinkStatus(ctx context.Context, linkID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.ID == linkID {
			link.Status = status
			return nil
		}
	}
	return fmt.Errorf("payment link not found: %s", linkID)
}

func (f *fakeStore) CreatePaymentTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.CreatedAt = time.Now()
	f.txs[tx.OrderID] = append(f.txs[tx.OrderID], *tx)
	return nil
}

func (f *fakeStore) GetPaymentTransactionsByOrderID(ctx context.Context, orderID string) ([]models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txs[orderID], nil
}

func (f *fakeStore) HasConfirmedTransaction(ctx context.Context, orderID, providerTxID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.txs[orderID] {
		if tx.ProviderTxID == providerTxID && tx.Status == models.TransactionStatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetWebhookEventByProviderID(ctx context.Context, provider, providerEventID string) (*models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.webhooks {
		if e.Provider == provider && e.ProviderEventID == providerEventID {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.webhooks {
		if e.Provider == event.Provider && e.ProviderEventID == event.ProviderEventID {
			return &pq.Error{Code: "23505"}
		}
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Status == "" {
		event.Status = models.WebhookStatusProcessing
	}
	event.CreatedAt = time.Now()
	f.webhooks = append(f.webhooks, event)
	return nil
}

func (f *fakeStore) UpdateWebhookEventStatus(ctx context.Context, eventID, status, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.webhooks {
		if e.ID == eventID {
			e.Status = status
			e.Error = errMsg
			return nil
		}
	}
	return fmt.Errorf("webhook event not found: %s", eventID)
}

// fakeInvoiceGateway counts CreatePayment calls so tests can assert the
// at-most-once invoice guarantee.
type fakeInvoiceGateway struct {
	mu             sync.Mutex
	createCalls    int
	lastRequest    *asaas.PaymentRequest
	failOnCreate   bool
	customerCalled int
}

func (g *fakeInvoiceGateway) EnsureCustomer(ctx context.Context, in asaas.CustomerInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerCalled++
	return "cus_test_001", nil
}

func (g *fakeInvoiceGateway) CreatePayment(ctx context.Context, req *asaas.PaymentRequest) (*asaas.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOnCreate {
		return nil, fmt.Errorf("invoice creation failed: status 500")
	}
	g.createCalls++
	g.lastRequest = req
	return &asaas.Payment{
		ID:         "pay_test_001",
		Status:     "PENDING",
		Value:      req.Value,
		InvoiceURL: "https://sandbox.asaas.com/i/test-001",
	}, nil
}

func (g *fakeInvoiceGateway) DueDate(now time.Time) time.Time {
	return now.AddDate(0, 0, 3)
}

// fakeCardGateway records charge requests and answers with canned results.
type fakeCardGateway struct {
	mu         sync.Mutex
	lastPix    *maxipago.PixChargeRequest
	lastCard   *maxipago.CardChargeRequest
	pixResult  *maxipago.ChargeResult
	cardResult *maxipago.ChargeResult
	pixErr     error
	cardErr    error
}

func (g *fakeCardGateway) DirectPixCharge(ctx context.Context, req *maxipago.PixChargeRequest) (*maxipago.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastPix = req
	if g.pixErr != nil {
		return nil, g.pixErr
	}
	return g.pixResult, nil
}

func (g *fakeCardGateway) ChargeTokenizedCard(ctx context.Context, req *maxipago.CardChargeRequest) (*maxipago.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCard = req
	if g.cardErr != nil {
		return nil, g.cardErr
	}
	return g.cardResult, nil
}

// fakePublisher records published events by type.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) record(eventType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	p.record(e.EventType)
	return nil
}

func (p *fakePublisher) PublishPaymentLinkCreated(ctx context.Context, e *models.PaymentLinkCreatedEvent) error {
	p.record(e.EventType)
	return nil
}

func (p *fakePublisher) PublishOrderPaid(ctx context.Context, e *models.OrderPaidEvent) error {
	p.record(e.EventType)
	return nil
}

func (p *fakePublisher) PublishOrderExpired(ctx context.Context, e *models.OrderExpiredEvent) error {
	p.record(e.EventType)
	return nil
}

func (p *fakePublisher) PublishPaymentConfirmed(ctx context.Context, e *models.PaymentConfirmedEvent) error {
	p.record(e.EventType)
	return nil
}

func (p *fakePublisher) PublishPaymentDeclined(ctx context.Context, e *models.PaymentDeclinedEvent) error {
	p.record(e.EventType)
	return nil
}

func (p *fakePublisher) published(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, e := range p.events {
		if e == eventType {
			count++
		}
	}
	return count
}
