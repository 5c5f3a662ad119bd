package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/agenda"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/recurrence"
)

const defaultSlotDuration = time.Hour

type Outcome string

const (
	OutcomeBooked   Outcome = "booked"
	OutcomeConflict Outcome = "conflict"
	OutcomeFailed   Outcome = "failed"
)

// Item is the result of one appointment request of a batch.
type Item struct {
	Index         int       `json:"index"`
	Start         time.Time `json:"start_time"`
	End           time.Time `json:"end_time"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	Message       string    `json:"message,omitempty"`
}

// Result aggregates a batch. A batch with failures is still a completed batch: nothing is
// rolled back and nothing is retried.
type Result struct {
	BatchID        string `json:"batch_id"`
	ServiceOrderID string `json:"service_order_id"`
	Succeeded      int    `json:"succeeded"`
	Failed         int    `json:"failed"`
	Items          []Item `json:"items"`
}

func (r Result) Partial() bool {
	return r.Succeeded > 0 && r.Failed > 0
}

type Config struct {
	// SlotDuration is the length of every booked appointment; default one hour.
	SlotDuration time.Duration
	// MaxInFlight caps concurrent collaborator calls; 0 launches the whole batch at once.
	MaxInFlight int
	// Now supplies the wall clock (and its location) the recurrence is computed from.
	Now func() time.Time
}

// Scheduler expands a recurrence into appointment requests and submits them concurrently.
type Scheduler struct {
	provider    agenda.Provider
	logger      *slog.Logger
	tracer      trace.Tracer
	slot        time.Duration
	maxInFlight int
	now         func() time.Time
}

func New(provider agenda.Provider, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = defaultSlotDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		provider:    provider,
		logger:      logger,
		tracer:      otel.Tracer("clinic/batch"),
		slot:        cfg.SlotDuration,
		maxInFlight: cfg.MaxInFlight,
		now:         cfg.Now,
	}
}

// Validate checks everything that must hold before any request is generated or sent.
func Validate(cfg clinic.RecurrenceConfig, order clinic.ServiceOrder) error {
	if len(cfg.Weekdays) == 0 {
		return clinic.NewConfigError("weekdays", "select at least one weekday")
	}
	for _, d := range cfg.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return clinic.NewConfigError("weekdays", fmt.Sprintf("invalid weekday %d", int(d)))
		}
	}
	if !cfg.Time.IsSet() {
		return clinic.NewConfigError("time", "select the session time")
	}
	if strings.TrimSpace(cfg.EmployeeID) == "" {
		return clinic.NewConfigError("employee_id", "select the professional responsible for the sessions")
	}
	if cfg.OccurrenceCount <= 0 {
		return clinic.NewConfigError("occurrence_count", "number of sessions must be greater than zero")
	}
	if cfg.OccurrenceCount > clinic.MaxOccurrences {
		return clinic.NewConfigError("occurrence_count", fmt.Sprintf("number of sessions cannot exceed %d", clinic.MaxOccurrences))
	}
	if !order.RecurrenceEligible() {
		return clinic.NewConfigError("total_quota", "recurring sessions require a plan with more than one session")
	}
	if cfg.OccurrenceCount != order.TotalQuota {
		return clinic.NewConfigError("occurrence_count",
			fmt.Sprintf("number of sessions must equal the plan total of %d", order.TotalQuota))
	}
	return nil
}

// Plan validates cfg and builds the requests the batch would submit, without any I/O.
func (s *Scheduler) Plan(cfg clinic.RecurrenceConfig, order clinic.ServiceOrder) ([]agenda.Request, error) {
	if err := Validate(cfg, order); err != nil {
		return nil, err
	}
	dates := recurrence.Generate(cfg.Weekdays, cfg.Time, cfg.OccurrenceCount, s.now())
	if len(dates) != cfg.OccurrenceCount {
		return nil, clinic.NewConfigError("weekdays", "recurrence produced no dates")
	}

	name := strings.TrimSpace(order.CustomerName)
	if name == "" {
		name = "customer " + order.CustomerID
	}
	branch := cfg.BranchID
	if branch == "" {
		branch = order.BranchID
	}

	reqs := make([]agenda.Request, 0, len(dates))
	for i, start := range dates {
		reqs = append(reqs, agenda.Request{
			CustomerID:     order.CustomerID,
			CustomerName:   order.CustomerName,
			EmployeeID:     cfg.EmployeeID,
			BranchID:       branch,
			ServiceOrderID: order.ID,
			Title:          "Session: " + name,
			Description:    fmt.Sprintf("Recurring session %d of %d for %s", i+1, len(dates), name),
			Note:           "service order " + order.ID,
			Start:          start,
			End:            start.Add(s.slot),
		})
	}
	return reqs, nil
}

// Submit books every occurrence of cfg for order. Configuration problems return a
// *clinic.ConfigError before any remote call. Once launched, requests are not cancelled by ctx;
// each one succeeds or fails on its own and the returned Result lists them in date order.
func (s *Scheduler) Submit(ctx context.Context, cfg clinic.RecurrenceConfig, order clinic.ServiceOrder) (Result, error) {
	reqs, err := s.Plan(cfg, order)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		BatchID:        uuid.NewString(),
		ServiceOrderID: order.ID,
		Items:          make([]Item, len(reqs)),
	}

	ctx, span := s.tracer.Start(ctx, "recurrence.batch", trace.WithAttributes(
		attribute.String("batch.id", res.BatchID),
		attribute.String("service_order.id", order.ID),
		attribute.Int("batch.size", len(reqs)),
	))
	defer span.End()

	launchCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	if s.maxInFlight > 0 {
		g.SetLimit(s.maxInFlight)
	}
	for i, req := range reqs {
		g.Go(func() error {
			res.Items[i] = s.submitOne(launchCtx, i, req)
			return nil
		})
	}
	_ = g.Wait()

	for _, it := range res.Items {
		if it.Outcome == OutcomeBooked {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("batch.succeeded", res.Succeeded),
		attribute.Int("batch.failed", res.Failed),
	)
	if res.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d appointments not booked", res.Failed, len(reqs)))
	}
	s.logger.Info("recurrence batch submitted",
		"batch_id", res.BatchID,
		"service_order_id", order.ID,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
	)
	return res, nil
}

func (s *Scheduler) submitOne(ctx context.Context, index int, req agenda.Request) (item Item) {
	ctx, span := s.tracer.Start(ctx, "agenda.create_appointment", trace.WithAttributes(
		attribute.Int("batch.index", index),
		attribute.String("appointment.start", req.Start.Format(time.RFC3339)),
	))
	defer span.End()

	item = Item{Index: index, Start: req.Start, End: req.End}
	defer func() {
		if r := recover(); r != nil {
			item.Outcome = OutcomeFailed
			item.AppointmentID = ""
			item.Message = fmt.Sprintf("appointment request panicked: %v", r)
			span.SetStatus(codes.Error, item.Message)
			span.SetAttributes(attribute.String("appointment.outcome", string(item.Outcome)))
			s.logger.Error("appointment request panicked", "service_order_id", req.ServiceOrderID, "start", req.Start, "panic", r)
		}
	}()
	id, err := s.provider.CreateAppointment(ctx, req)
	switch {
	case err == nil:
		item.Outcome = OutcomeBooked
		item.AppointmentID = id
	case agenda.IsConflict(err):
		item.Outcome = OutcomeConflict
		item.Message = agenda.ConflictMessage(err)
		s.logger.Warn("appointment slot conflict", "service_order_id", req.ServiceOrderID, "start", req.Start, "err", err)
	default:
		item.Outcome = OutcomeFailed
		item.Message = err.Error()
		span.RecordError(err)
		s.logger.Error("appointment request failed", "service_order_id", req.ServiceOrderID, "start", req.Start, "err", err)
	}
	span.SetAttributes(attribute.String("appointment.outcome", string(item.Outcome)))
	return item
}
