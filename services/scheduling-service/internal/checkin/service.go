package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/quota"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/storage"
)

var (
	// ErrBlocked matches every *BlockedError through errors.Is.
	ErrBlocked = errors.New("check-in blocked")
	// ErrNoOrder means the request does not reference an existing service order.
	ErrNoOrder = errors.New("no service order selected")
)

// BlockedError carries the user-facing reason a session could not be recorded.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return ErrBlocked.Error() + ": " + e.Reason
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}

// Store is the persistence the check-in flow reads and writes.
type Store interface {
	GetServiceOrder(ctx context.Context, id string) (clinic.ServiceOrder, error)
	ListSessionsForOrder(ctx context.Context, orderID string) ([]clinic.Session, error)
	ListOrdersForCustomer(ctx context.Context, customerID string) ([]clinic.ServiceOrder, error)
	CreateSession(ctx context.Context, s clinic.Session) (clinic.Session, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Request describes the session to record.
type Request struct {
	ServiceOrderID string
	Status         clinic.SessionStatus
	Date           time.Time
	Time           clinic.TimeOfDay
	Note           string
	EmployeeID     string
}

type Result struct {
	Session clinic.Session
	Quota   quota.State
}

// LoadOrder returns the plan with a fresh snapshot of its sessions.
func (s *Service) LoadOrder(ctx context.Context, orderID string) (clinic.ServiceOrder, error) {
	if strings.TrimSpace(orderID) == "" {
		return clinic.ServiceOrder{}, ErrNoOrder
	}
	order, err := s.store.GetServiceOrder(ctx, orderID)
	if err != nil {
		if storage.IsNotFound(err) {
			return clinic.ServiceOrder{}, ErrNoOrder
		}
		return clinic.ServiceOrder{}, fmt.Errorf("load service order: %w", err)
	}
	sessions, err := s.store.ListSessionsForOrder(ctx, orderID)
	if err != nil {
		return clinic.ServiceOrder{}, fmt.Errorf("list sessions: %w", err)
	}
	order.Sessions = sessions
	return order, nil
}

// Decide evaluates the gate for a session of the given status. An empty or unknown order id
// yields the NoOrderSelected state rather than an error.
func (s *Service) Decide(ctx context.Context, orderID string, status clinic.SessionStatus) (quota.Decision, error) {
	order, err := s.LoadOrder(ctx, orderID)
	if errors.Is(err, ErrNoOrder) {
		return quota.Gate(nil, status), nil
	}
	if err != nil {
		return quota.Decision{}, err
	}
	return quota.Gate(&order, status), nil
}

// Quota returns the consumption state of a plan.
func (s *Service) Quota(ctx context.Context, orderID string) (quota.State, error) {
	order, err := s.LoadOrder(ctx, orderID)
	if err != nil {
		return quota.State{}, err
	}
	return quota.Evaluate(order.Sessions, order.TotalQuota), nil
}

// OpenOrders lists the customer's plans that still accept sessions.
func (s *Service) OpenOrders(ctx context.Context, customerID string) ([]clinic.ServiceOrder, error) {
	orders, err := s.store.ListOrdersForCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list service orders: %w", err)
	}
	open := make([]clinic.ServiceOrder, 0, len(orders))
	for _, o := range orders {
		if o.Status.IsOpen() {
			open = append(open, o)
		}
	}
	return open, nil
}

// CheckIn records a session when the gate allows it. A blocked request performs no write and
// returns a *BlockedError with the user-facing reason.
func (s *Service) CheckIn(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	order, err := s.LoadOrder(ctx, req.ServiceOrderID)
	if err != nil {
		return Result{}, err
	}

	decision := quota.Gate(&order, req.Status)
	if !decision.CanSubmit() {
		s.logger.Info("check-in blocked", "service_order_id", order.ID, "status", req.Status.String(), "reason", decision.Reason)
		return Result{}, &BlockedError{Reason: decision.Reason}
	}

	created, err := s.store.CreateSession(ctx, clinic.Session{
		ServiceOrderID: order.ID,
		Status:         req.Status,
		Date:           req.Date,
		Time:           req.Time,
		Note:           strings.TrimSpace(req.Note),
		EmployeeID:     req.EmployeeID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			s.logger.Warn("check-in rejected at write time", "service_order_id", order.ID, "err", err)
			return Result{}, &BlockedError{Reason: quota.BlockedReason(order.TotalQuota)}
		}
		if storage.IsNotFound(err) {
			return Result{}, ErrNoOrder
		}
		return Result{}, fmt.Errorf("create session: %w", err)
	}

	sessions := append(order.Sessions, created)
	return Result{Session: created, Quota: quota.Evaluate(sessions, order.TotalQuota)}, nil
}

func validate(req Request) error {
	if !req.Status.Valid() {
		return clinic.NewConfigError("status", "select the session status")
	}
	if req.Date.IsZero() {
		return clinic.NewConfigError("date", "select the session date")
	}
	if !req.Time.IsSet() {
		return clinic.NewConfigError("time", "select the session time")
	}
	return nil
}
