package service

import (
	"context"
	"testing"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTestCPF = "52998224725"

func TestValidCPF(t *testing.T) {
	assert.True(t, ValidCPF(validTestCPF))
	assert.True(t, ValidCPF("529.982.247-25"))

	assert.False(t, ValidCPF("11111111111"))
	assert.False(t, ValidCPF("52998224724"))
	assert.False(t, ValidCPF("1234567890"))
	assert.False(t, ValidCPF(""))
}

func TestResolveForOrderMergesOntoPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	r := NewIdentityResolver(f)

	placeholder, err := r.CreateAnonymous(ctx)
	require.NoError(t, err)
	assert.True(t, placeholder.IsPlaceholder())

	order := &models.Order{CustomerID: placeholder.ID, Status: models.OrderStatusPending, AttendantID: "att-1"}
	require.NoError(t, f.CreateOrder(ctx, order))

	resolved, found, err := r.ResolveForOrder(ctx, order, placeholder, IdentityInput{
		Name:  "Maria Souza",
		Phone: "35999990000",
		CPF:   validTestCPF,
	})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "Maria Souza", resolved.Name)
	assert.Equal(t, validTestCPF, resolved.CPF)
	assert.False(t, resolved.IsPlaceholder())
}

func TestResolveForOrderRepointsAtExistingCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	r := NewIdentityResolver(f)

	existing := &models.Customer{Name: "Maria Souza", Phone: "35999990000", CPF: validTestCPF}
	require.NoError(t, f.CreateCustomer(ctx, existing))

	placeholder, err := r.CreateAnonymous(ctx)
	require.NoError(t, err)

	order := &models.Order{CustomerID: placeholder.ID, Status: models.OrderStatusPending, AttendantID: "att-1"}
	require.NoError(t, f.CreateOrder(ctx, order))

	resolved, found, err := r.ResolveForOrder(ctx, order, placeholder, IdentityInput{
		Name: "Other Name",
		CPF:  validTestCPF,
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, existing.ID, resolved.ID)
	assert.Equal(t, existing.ID, order.CustomerID)

	// The matched customer keeps their own data; the form never overwrites it.
	assert.Equal(t, "Maria Souza", resolved.Name)

	// Re-pointing leaves the placeholder alone; cleanup is a separate
	// post-commit step.
	_, err = f.GetCustomerByID(ctx, placeholder.ID)
	require.NoError(t, err)

	r.CleanupPlaceholder(ctx, order.ID, placeholder)
	_, err = f.GetCustomerByID(ctx, placeholder.ID)
	assert.Error(t, err)
}

func TestResolveForOrderKeepsPlaceholderWithOtherOrders(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	r := NewIdentityResolver(f)

	existing := &models.Customer{Name: "Maria Souza", CPF: validTestCPF}
	require.NoError(t, f.CreateCustomer(ctx, existing))

	placeholder, err := r.CreateAnonymous(ctx)
	require.NoError(t, err)

	order := &models.Order{CustomerID: placeholder.ID, Status: models.OrderStatusPending, AttendantID: "att-1"}
	require.NoError(t, f.CreateOrder(ctx, order))
	other := &models.Order{CustomerID: placeholder.ID, Status: models.OrderStatusPending, AttendantID: "att-1"}
	require.NoError(t, f.CreateOrder(ctx, other))

	_, found, err := r.ResolveForOrder(ctx, order, placeholder, IdentityInput{CPF: validTestCPF})
	require.NoError(t, err)
	assert.True(t, found)

	// Still referenced by the other order, so not deleted.
	r.CleanupPlaceholder(ctx, order.ID, placeholder)
	_, err = f.GetCustomerByID(ctx, placeholder.ID)
	assert.NoError(t, err)
}

func TestFindOrCreateReturnsExistingByCPF(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	r := NewIdentityResolver(f)

	first, err := r.FindOrCreate(ctx, "Maria Souza", "35999990000", "", validTestCPF)
	require.NoError(t, err)

	second, err := r.FindOrCreate(ctx, "Different Name", "", "", validTestCPF)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestFindOrCreateRejectsInvalidCPF(t *testing.T) {
	ctx := context.Background()
	f := newFakeStore()
	r := NewIdentityResolver(f)

	_, err := r.FindOrCreate(ctx, "Maria Souza", "", "", "11111111111")
	assert.Error(t, err)
}
