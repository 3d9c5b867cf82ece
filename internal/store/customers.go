package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateCustomer creates a new customer. CPF uniqueness is enforced by the
// database; callers can detect collisions with IsUniqueViolation.
func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}

	query := `
		INSERT INTO customers (id, name, phone, email, cpf, rg, birth_date, gateway_customer_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		RETURNING created_at, updated_at`

	row := s.ext(ctx).QueryRowxContext(ctx, query,
		customer.ID, customer.Name, customer.Phone, customer.Email,
		customer.CPF, customer.RG, customer.BirthDate, customer.GatewayCustomer)
	return row.Scan(&customer.CreatedAt, &customer.UpdatedAt)
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := sqlx.GetContext(ctx, s.ext(ctx), &customer,
		"SELECT id, name, phone, COALESCE(email, '') AS email, COALESCE(cpf, '') AS cpf, COALESCE(rg, '') AS rg, birth_date, COALESCE(gateway_customer_id, '') AS gateway_customer_id, created_at, updated_at FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByCPF retrieves a customer by CPF. Returns nil when absent.
func (s *Store) GetCustomerByCPF(ctx context.Context, cpf string) (*models.Customer, error) {
	var customer models.Customer
	err := sqlx.GetContext(ctx, s.ext(ctx), &customer,
		"SELECT id, name, phone, COALESCE(email, '') AS email, COALESCE(cpf, '') AS cpf, COALESCE(rg, '') AS rg, birth_date, COALESCE(gateway_customer_id, '') AS gateway_customer_id, created_at, updated_at FROM customers WHERE cpf = $1", cpf)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer updates the identification fields of a customer
func (s *Store) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	_, err := s.ext(ctx).ExecContext(ctx, `
		UPDATE customers
		SET name = $1, phone = $2, email = NULLIF($3, ''), cpf = NULLIF($4, ''),
		    rg = NULLIF($5, ''), birth_date = $6, updated_at = NOW()
		WHERE id = $7`,
		customer.Name, customer.Phone, customer.Email, customer.CPF,
		customer.RG, customer.BirthDate, customer.ID)
	return err
}

// SetGatewayCustomerID stores the remote gateway customer id
func (s *Store) SetGatewayCustomerID(ctx context.Context, customerID, gatewayID string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE customers SET gateway_customer_id = $1, updated_at = NOW() WHERE id = $2",
		gatewayID, customerID)
	return err
}

// DeleteCustomer removes a customer and its addresses
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	_, err := s.ext(ctx).ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
	return err
}

// CountOrdersByCustomer counts orders pointing at a customer
func (s *Store) CountOrdersByCustomer(ctx context.Context, customerID string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.ext(ctx), &count,
		"SELECT COUNT(*) FROM orders WHERE customer_id = $1", customerID)
	return count, err
}

// CreateAddress creates an address for a customer
func (s *Store) CreateAddress(ctx context.Context, addr *models.Address) error {
	if addr.ID == "" {
		addr.ID = uuid.New().String()
	}

	query := `
		INSERT INTO addresses (id, customer_id, street, number, complement, district, city, state, zip_code, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	row := s.ext(ctx).QueryRowxContext(ctx, query,
		addr.ID, addr.CustomerID, addr.Street, addr.Number, addr.Complement,
		addr.District, addr.City, addr.State, addr.ZipCode, addr.IsPrimary)
	return row.Scan(&addr.CreatedAt)
}

// GetAddressByID retrieves an address by ID
func (s *Store) GetAddressByID(ctx context.Context, id string) (*models.Address, error) {
	var addr models.Address
	err := sqlx.GetContext(ctx, s.ext(ctx), &addr,
		"SELECT * FROM addresses WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("address not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// GetAddressesByCustomer retrieves all addresses of a customer
func (s *Store) GetAddressesByCustomer(ctx context.Context, customerID string) ([]models.Address, error) {
	var addrs []models.Address
	err := sqlx.SelectContext(ctx, s.ext(ctx), &addrs,
		"SELECT * FROM addresses WHERE customer_id = $1 ORDER BY created_at", customerID)
	return addrs, err
}

// FindAddress looks up an existing address by street, number and zip code
// so checkout resubmissions reuse the same record. Returns nil when absent.
func (s *Store) FindAddress(ctx context.Context, customerID, street, number, zipCode string) (*models.Address, error) {
	var addr models.Address
	err := sqlx.GetContext(ctx, s.ext(ctx), &addr,
		"SELECT * FROM addresses WHERE customer_id = $1 AND street = $2 AND number = $3 AND zip_code = $4",
		customerID, street, number, zipCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// ClearPrimaryAddress unsets the primary flag on every address of a customer
func (s *Store) ClearPrimaryAddress(ctx context.Context, customerID string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE addresses SET is_primary = FALSE WHERE customer_id = $1", customerID)
	return err
}

// SetPrimaryAddress marks a single address as the customer's primary
func (s *Store) SetPrimaryAddress(ctx context.Context, addressID string) error {
	_, err := s.ext(ctx).ExecContext(ctx,
		"UPDATE addresses SET is_primary = TRUE WHERE id = $1", addressID)
	return err
}

// DeleteAddress removes an address
func (s *Store) DeleteAddress(ctx context.Context, id string) error {
	_, err := s.ext(ctx).ExecContext(ctx, "DELETE FROM addresses WHERE id = $1", id)
	return err
}
