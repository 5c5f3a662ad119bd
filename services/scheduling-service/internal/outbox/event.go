package outbox

import (
	"encoding/json"
	"time"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
)

const (
	EventSessionRecorded = "clinic.session.recorded.v1"
	EventBatchCompleted  = "clinic.recurrence.batch.completed.v1"

	AggregateServiceOrder = "service_order"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type SessionRecordedPayload struct {
	SessionID      string               `json:"session_id"`
	ServiceOrderID string               `json:"service_order_id"`
	Status         clinic.SessionStatus `json:"status"`
	Date           time.Time            `json:"date"`
	Time           clinic.TimeOfDay     `json:"time"`
	EmployeeID     string               `json:"employee_id,omitempty"`
	Realized       int                  `json:"realized"`
	Total          int                  `json:"total"`
}

type BatchCompletedPayload struct {
	BatchID        string    `json:"batch_id"`
	ServiceOrderID string    `json:"service_order_id"`
	Requested      int       `json:"requested"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	CompletedAt    time.Time `json:"completed_at"`
}

func SessionRecorded(p SessionRecordedPayload) (Event, error) {
	return newEvent(EventSessionRecorded, p.ServiceOrderID, p)
}

func BatchCompleted(p BatchCompletedPayload) (Event, error) {
	return newEvent(EventBatchCompleted, p.ServiceOrderID, p)
}

func newEvent(eventType, orderID string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateServiceOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}
