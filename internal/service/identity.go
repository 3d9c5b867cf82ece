package service

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// IdentityInput are the identification fields collected during checkout.
// Empty fields never overwrite existing customer data.
type IdentityInput struct {
	Name      string
	Phone     string
	Email     string
	CPF       string
	RG        string
	BirthDate *time.Time
}

// IdentityResolver finds or merges customers by CPF and manages placeholder
// customers created for anonymous checkouts.
type IdentityResolver struct {
	store  Store
	logger *zap.Logger
}

// NewIdentityResolver creates a new identity resolver
func NewIdentityResolver(store Store) *IdentityResolver {
	return &IdentityResolver{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateAnonymous creates a placeholder customer for a checkout started
// without prior identification.
func (r *IdentityResolver) CreateAnonymous(ctx context.Context) (*models.Customer, error) {
	customer := &models.Customer{
		Name:  models.PlaceholderName,
		Phone: "",
	}
	if err := r.store.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create placeholder customer: %w", err)
	}
	return customer, nil
}

// FindOrCreate returns the customer bound to the CPF when one exists, and
// creates a new customer otherwise. Used by the attendant-side create path.
func (r *IdentityResolver) FindOrCreate(ctx context.Context, name, phone, email, cpf string) (*models.Customer, error) {
	cpf = digitsOnly(cpf)
	if cpf != "" {
		if !ValidCPF(cpf) {
			return nil, fmt.Errorf("invalid cpf")
		}
		existing, err := r.store.GetCustomerByCPF(ctx, cpf)
		if err != nil {
			return nil, fmt.Errorf("failed to look up customer by cpf: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	customer := &models.Customer{
		Name:  name,
		Phone: phone,
		Email: email,
		CPF:   cpf,
	}
	if err := r.store.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer, nil
}

// ResolveForOrder applies the submitted identity to the order's customer.
//
// If the CPF belongs to a different existing customer, the order is
// re-pointed at that customer. found=true tells the orchestrator to
// short-circuit remaining collection steps and to clean up the orphaned
// placeholder once its transaction commits; the matched customer's fields
// are never overwritten with the submitted form data.
func (r *IdentityResolver) ResolveForOrder(ctx context.Context, order *models.Order, current *models.Customer, in IdentityInput) (resolved *models.Customer, found bool, err error) {
	cpf := digitsOnly(in.CPF)

	if cpf != "" {
		existing, err := r.store.GetCustomerByCPF(ctx, cpf)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up customer by cpf: %w", err)
		}
		if existing != nil && existing.ID != order.CustomerID {
			if err := r.store.UpdateOrderCustomer(ctx, order.ID, existing.ID); err != nil {
				return nil, false, fmt.Errorf("failed to re-point order at existing customer: %w", err)
			}
			order.CustomerID = existing.ID
			return existing, true, nil
		}
	}

	merged := mergeIdentity(current, in, cpf)
	if merged {
		if err := r.store.UpdateCustomer(ctx, current); err != nil {
			return nil, false, fmt.Errorf("failed to update customer: %w", err)
		}
	}
	return current, false, nil
}

// CleanupPlaceholder deletes an orphaned placeholder customer. It must run
// outside the re-pointing transaction: a failed DELETE would abort it, and
// correctness does not depend on the cleanup succeeding, so failures are
// logged and counted, not propagated.
func (r *IdentityResolver) CleanupPlaceholder(ctx context.Context, orderID string, orphan *models.Customer) {
	if orphan == nil || !orphan.IsPlaceholder() {
		return
	}

	count, err := r.store.CountOrdersByCustomer(ctx, orphan.ID)
	if err != nil || count > 0 {
		if err != nil {
			util.PlaceholderCleanupFailures.Inc()
			r.logger.Warn("failed to count placeholder orders",
				zap.String("order_id", orderID),
				zap.String("customer_id", orphan.ID),
				zap.Error(err))
		}
		return
	}

	if err := r.store.DeleteCustomer(ctx, orphan.ID); err != nil {
		util.PlaceholderCleanupFailures.Inc()
		r.logger.Warn("failed to delete orphaned placeholder customer",
			zap.String("order_id", orderID),
			zap.String("customer_id", orphan.ID),
			zap.Error(err))
	}
}

// mergeIdentity copies non-empty submitted fields onto the customer.
// Returns whether anything changed.
func mergeIdentity(customer *models.Customer, in IdentityInput, cpf string) bool {
	changed := false

	if in.Name != "" && in.Name != customer.Name {
		customer.Name = in.Name
		changed = true
	}
	if in.Phone != "" && in.Phone != customer.Phone {
		customer.Phone = in.Phone
		changed = true
	}
	if in.Email != "" && in.Email != customer.Email {
		customer.Email = in.Email
		changed = true
	}
	if in.RG != "" && in.RG != customer.RG {
		customer.RG = in.RG
		changed = true
	}
	if cpf != "" && cpf != customer.CPF {
		customer.CPF = cpf
		changed = true
	}
	if in.BirthDate != nil {
		customer.BirthDate = in.BirthDate
		changed = true
	}
	return changed
}

// ValidCPF checks the CPF verifier digits.
func ValidCPF(cpf string) bool {
	cpf = digitsOnly(cpf)
	if len(cpf) != 11 {
		return false
	}

	allSame := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	for _, n := range []int{9, 10} {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(cpf[i]-'0') * (n + 1 - i)
		}
		digit := 11 - sum%11
		if digit >= 10 {
			digit = 0
		}
		if digit != int(cpf[n]-'0') {
			return false
		}
	}
	return true
}

func digitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
