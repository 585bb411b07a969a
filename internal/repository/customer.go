package repository

import (
	"context"
	"fmt"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

// UpsertCustomer inserts c or, when the mobile is already registered,
// refreshes the stored name and returns the existing row.
func (r *Repository) UpsertCustomer(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	var out model.Customer
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (id, name, mobile, email, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (mobile) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, mobile, email, created_at
	`, c.ID, c.Name, c.Mobile, c.Email, c.CreatedAt).
		Scan(&out.ID, &out.Name, &out.Mobile, &out.Email, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	return &out, nil
}

// GetCustomer returns a customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var out model.Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, mobile, email, created_at FROM customers WHERE id=$1
	`, id).Scan(&out.ID, &out.Name, &out.Mobile, &out.Email, &out.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "select customer")
	}
	return &out, nil
}
