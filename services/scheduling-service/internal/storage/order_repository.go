package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/db"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
)

type OrderRepository struct {
	pool *db.Pool
}

func NewOrderRepository(pool *db.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `
	id::text, status, total_quota, customer_id, customer_name,
	COALESCE(employee_id, ''), COALESCE(branch_id, ''), created_at`

func scanOrder(row pgx.Row) (clinic.ServiceOrder, error) {
	var o clinic.ServiceOrder
	var status int16
	err := row.Scan(&o.ID, &status, &o.TotalQuota, &o.CustomerID, &o.CustomerName,
		&o.EmployeeID, &o.BranchID, &o.CreatedAt)
	o.Status = clinic.OrderStatus(status)
	return o, err
}

// GetServiceOrder returns the plan without its sessions. An unknown or malformed id yields
// pgx.ErrNoRows.
func (r *OrderRepository) GetServiceOrder(ctx context.Context, id string) (clinic.ServiceOrder, error) {
	if !validID(id) {
		return clinic.ServiceOrder{}, pgx.ErrNoRows
	}
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE id = $1`, id))
}

// ListOrdersForCustomer returns the customer's plans, newest first.
func (r *OrderRepository) ListOrdersForCustomer(ctx context.Context, customerID string) ([]clinic.ServiceOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM service_orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []clinic.ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return orders, nil
}
