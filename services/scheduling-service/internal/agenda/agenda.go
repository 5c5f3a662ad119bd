package agenda

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Request asks the scheduling collaborator to book one appointment slot.
type Request struct {
	CustomerID     string    `json:"customer_id"`
	CustomerName   string    `json:"customer_name"`
	EmployeeID     string    `json:"employee_id"`
	BranchID       string    `json:"branch_id,omitempty"`
	ServiceOrderID string    `json:"service_order_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Note           string    `json:"note,omitempty"`
	Start          time.Time `json:"start_time"`
	End            time.Time `json:"end_time"`
}

// Provider is the external "create appointment" collaborator.
type Provider interface {
	CreateAppointment(ctx context.Context, req Request) (string, error)
}

// ErrConflict matches every *ConflictError through errors.Is.
var ErrConflict = errors.New("appointment slot unavailable")

const defaultConflictMessage = "slot unavailable"

// ConflictError means the customer already has a booking overlapping the requested slot.
type ConflictError struct {
	Detail string
}

func (e *ConflictError) Error() string {
	if strings.TrimSpace(e.Detail) == "" {
		return defaultConflictMessage
	}
	return e.Detail
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// ConflictMessage is the user-facing text for a conflict: the collaborator's detail when it
// sent one, otherwise a generic message.
func ConflictMessage(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return defaultConflictMessage
}

type disabledProvider struct{}

// NewDisabledProvider is used when no collaborator is configured: every booking fails.
func NewDisabledProvider() Provider {
	return disabledProvider{}
}

func (disabledProvider) CreateAppointment(context.Context, Request) (string, error) {
	return "", errors.New("scheduling collaborator is not configured")
}
