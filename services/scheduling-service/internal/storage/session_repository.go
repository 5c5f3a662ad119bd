package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/db"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/outbox"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/quota"
)

type SessionRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewSessionRepository(pool *db.Pool, events *outbox.Repository) *SessionRepository {
	return &SessionRepository{pool: pool, outbox: events}
}

func (r *SessionRepository) ListSessionsForOrder(ctx context.Context, orderID string) ([]clinic.Session, error) {
	if !validID(orderID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, service_order_id::text, status, session_date, session_time,
			COALESCE(note, ''), COALESCE(employee_id, ''), created_at
		FROM sessions
		WHERE service_order_id = $1
		ORDER BY session_date, session_time
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []clinic.Session
	for rows.Next() {
		var s clinic.Session
		var status int16
		var at string
		if err := rows.Scan(&s.ID, &s.ServiceOrderID, &status, &s.Date, &at, &s.Note, &s.EmployeeID, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Status = clinic.SessionStatus(status)
		if s.Time, err = clinic.ParseTimeOfDay(at); err != nil {
			return nil, fmt.Errorf("session %s: %w", s.ID, err)
		}
		sessions = append(sessions, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return sessions, nil
}

// CreateSession records s under a lock on its service order. A realized session that would
// exceed the plan's total is rejected with ErrQuotaExceeded, so concurrent check-ins that both
// passed the gate cannot overflow the plan. The session.recorded event commits with the row.
func (r *SessionRepository) CreateSession(ctx context.Context, s clinic.Session) (clinic.Session, error) {
	if !s.Status.Valid() {
		return clinic.Session{}, fmt.Errorf("invalid session status %d", int(s.Status))
	}
	if !validID(s.ServiceOrderID) {
		return clinic.Session{}, pgx.ErrNoRows
	}
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		var total int
		if err := tx.QueryRow(ctx, `
			SELECT total_quota FROM service_orders WHERE id = $1 FOR UPDATE
		`, s.ServiceOrderID).Scan(&total); err != nil {
			return err
		}

		var realized int
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM sessions WHERE service_order_id = $1 AND status = $2
		`, s.ServiceOrderID, int16(clinic.SessionRealized)).Scan(&realized); err != nil {
			return err
		}
		if s.Status.ConsumesQuota() {
			if realized >= total {
				return fmt.Errorf("%w: %s", ErrQuotaExceeded, quota.BlockedReason(total))
			}
			realized++
		}

		s.ID = uuid.NewString()
		if err := tx.QueryRow(ctx, `
			INSERT INTO sessions (id, service_order_id, status, session_date, session_time, note, employee_id)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
			RETURNING created_at
		`, s.ID, s.ServiceOrderID, int16(s.Status), s.Date, s.Time.String(), s.Note, s.EmployeeID).Scan(&s.CreatedAt); err != nil {
			return err
		}

		evt, err := outbox.SessionRecorded(outbox.SessionRecordedPayload{
			SessionID:      s.ID,
			ServiceOrderID: s.ServiceOrderID,
			Status:         s.Status,
			Date:           s.Date,
			Time:           s.Time,
			EmployeeID:     s.EmployeeID,
			Realized:       realized,
			Total:          total,
		})
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return clinic.Session{}, err
	}
	return s, nil
}
