package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/db"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/agenda"
)

// AppointmentRepository is the in-database scheduling collaborator. Overlapping bookings for a
// customer are rejected by the appointments_customer_no_overlap exclusion constraint.
type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) CreateAppointment(ctx context.Context, req agenda.Request) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, customer_id, employee_id, branch_id, service_order_id, title, description, note, start_time, end_time)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, '')::uuid, $6, $7, NULLIF($8, ''), $9, $10)
	`, id, req.CustomerID, req.EmployeeID, req.BranchID, req.ServiceOrderID, req.Title, req.Description, req.Note,
		req.Start, req.End)
	if err != nil {
		if IsConflict(err) {
			return "", &agenda.ConflictError{Detail: "customer already has an appointment in this time range"}
		}
		return "", err
	}
	return id, nil
}
