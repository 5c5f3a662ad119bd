package storage

import (
	"context"
	"time"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/db"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/batch"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/outbox"
)

// Store bundles the repositories the service works with.
type Store struct {
	*OrderRepository
	*SessionRepository
	*AppointmentRepository

	pool   *db.Pool
	events *outbox.Repository
}

func NewStore(pool *db.Pool) *Store {
	events := outbox.NewRepository()
	return &Store{
		OrderRepository:       NewOrderRepository(pool),
		SessionRepository:     NewSessionRepository(pool, events),
		AppointmentRepository: NewAppointmentRepository(pool),
		pool:                  pool,
		events:                events,
	}
}

func (s *Store) Outbox() *outbox.Repository {
	return s.events
}

// RecordBatch enqueues the summary of a submitted recurrence batch.
func (s *Store) RecordBatch(ctx context.Context, res batch.Result) error {
	evt, err := outbox.BatchCompleted(outbox.BatchCompletedPayload{
		BatchID:        res.BatchID,
		ServiceOrderID: res.ServiceOrderID,
		Requested:      len(res.Items),
		Succeeded:      res.Succeeded,
		Failed:         res.Failed,
		CompletedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.events.Insert(ctx, s.pool, evt)
}
