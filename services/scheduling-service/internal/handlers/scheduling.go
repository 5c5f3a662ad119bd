package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/httpx"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/batch"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/checkin"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/recurrence"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/replay"
)

// BatchRecorder persists the summary of a submitted batch.
type BatchRecorder interface {
	RecordBatch(ctx context.Context, res batch.Result) error
}

// ReplayStore answers repeated submissions that carry the same Idempotency-Key.
type ReplayStore interface {
	Begin(ctx context.Context, scope, key string) (replay.State, replay.Entry, error)
	Complete(ctx context.Context, scope, key string, e replay.Entry) error
	Release(ctx context.Context, scope, key string) error
}

type Deps struct {
	CheckIn   *checkin.Service
	Scheduler *batch.Scheduler
	// Recorder and Replay are optional.
	Recorder BatchRecorder
	Replay   ReplayStore
	Logger   *slog.Logger
	// Now is the clock for recurrence previews; it must match the scheduler's clock.
	Now func() time.Time
}

type SchedulingHandler struct {
	checkin   *checkin.Service
	scheduler *batch.Scheduler
	recorder  BatchRecorder
	replay    ReplayStore
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func NewSchedulingHandler(d Deps) *SchedulingHandler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &SchedulingHandler{
		checkin:   d.CheckIn,
		scheduler: d.Scheduler,
		recorder:  d.Recorder,
		replay:    d.Replay,
		logger:    d.Logger,
		validate:  newValidator(),
		now:       d.Now,
	}
}

func (h *SchedulingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/service-orders/{id}/recurrence", h.SubmitRecurrence)
	mux.HandleFunc("POST /api/v1/recurrence/preview", h.PreviewRecurrence)
	mux.HandleFunc("GET /api/v1/service-orders/{id}/quota", h.Quota)
	mux.HandleFunc("GET /api/v1/service-orders/{id}/check-in", h.CheckInDecision)
	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/customers/{id}/service-orders", h.OpenOrders)
}

func (h *SchedulingHandler) SubmitRecurrence(w http.ResponseWriter, r *http.Request) {
	var req recurrenceRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	order, err := h.checkin.LoadOrder(ctx, r.PathValue("id"))
	if err != nil {
		h.writeLoadError(w, err)
		return
	}

	cfg, err := recurrenceConfig(req, order)
	if err != nil {
		writeConfigError(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.replay != nil {
		state, entry, err := h.replay.Begin(ctx, order.ID, key)
		switch {
		case err != nil:
			h.logger.Warn("replay store unavailable", "err", err)
			key = ""
		case state == replay.StateDone:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(httpx.IdempotentReplayedHeader, "true")
			w.WriteHeader(entry.Status)
			_, _ = w.Write(entry.Body)
			return
		case state == replay.StateInFlight:
			httpx.WriteError(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
			return
		}
	} else {
		key = ""
	}

	res, err := h.scheduler.Submit(ctx, cfg, order)
	if err != nil {
		if key != "" {
			if rerr := h.replay.Release(context.WithoutCancel(ctx), order.ID, key); rerr != nil {
				h.logger.Warn("replay release failed", "err", rerr)
			}
		}
		if _, ok := clinic.AsConfigError(err); ok {
			writeConfigError(w, err)
			return
		}
		h.logger.Error("recurrence submit failed", "service_order_id", order.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to submit recurrence")
		return
	}

	// The batch is done whatever the caller does now.
	ctx = context.WithoutCancel(ctx)
	if h.recorder != nil {
		if err := h.recorder.RecordBatch(ctx, res); err != nil {
			h.logger.Error("record batch event failed", "batch_id", res.BatchID, "err", err)
		}
	}

	body, err := json.Marshal(res)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to build response")
		return
	}
	if key != "" {
		if err := h.replay.Complete(ctx, order.ID, key, replay.Entry{Status: http.StatusOK, Body: body}); err != nil {
			h.logger.Warn("replay store write failed", "err", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *SchedulingHandler) PreviewRecurrence(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !h.decode(w, r, &req) {
		return
	}
	days, err := clinic.ParseWeekdays(req.Weekdays)
	if err != nil {
		writeFieldError(w, "weekdays", err.Error())
		return
	}
	at, err := clinic.ParseTimeOfDay(req.Time)
	if err != nil {
		writeFieldError(w, "time", err.Error())
		return
	}
	now := h.now()
	resp := previewResponse{Dates: recurrence.Generate(days, at, req.Count, now)}
	if next, ok := recurrence.Next(days, at, now); ok {
		resp.Next = &next
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *SchedulingHandler) Quota(w http.ResponseWriter, r *http.Request) {
	st, err := h.checkin.Quota(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (h *SchedulingHandler) CheckInDecision(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		raw = clinic.SessionRealized.String()
	}
	status, err := clinic.ParseSessionStatus(raw)
	if err != nil {
		writeFieldError(w, "status", err.Error())
		return
	}
	d, err := h.checkin.Decide(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.logger.Error("check-in decision failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to evaluate check-in")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *SchedulingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := clinic.ParseSessionStatus(req.Status)
	if err != nil {
		writeFieldError(w, "status", err.Error())
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeFieldError(w, "date", "invalid date (expected YYYY-MM-DD)")
		return
	}
	at, err := clinic.ParseTimeOfDay(req.Time)
	if err != nil {
		writeFieldError(w, "time", err.Error())
		return
	}

	res, err := h.checkin.CheckIn(r.Context(), checkin.Request{
		ServiceOrderID: strings.TrimSpace(req.ServiceOrderID),
		Status:         status,
		Date:           date,
		Time:           at,
		Note:           req.Note,
		EmployeeID:     strings.TrimSpace(req.EmployeeID),
	})
	if err != nil {
		var blocked *checkin.BlockedError
		switch {
		case errors.As(err, &blocked):
			httpx.WriteJSON(w, http.StatusConflict, httpx.ErrorBody{Error: "check-in blocked", Reason: blocked.Reason})
		case errors.Is(err, clinic.ErrConfiguration):
			writeConfigError(w, err)
		default:
			h.writeLoadError(w, err)
		}
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, sessionResponse{Session: newSessionView(res.Session), Quota: res.Quota})
}

func (h *SchedulingHandler) OpenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkin.OpenOrders(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("list service orders failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list service orders")
		return
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderView(o))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *SchedulingHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		if field, ok := firstInvalidField(err); ok {
			writeFieldError(w, field, "invalid value")
			return false
		}
		httpx.WriteError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func (h *SchedulingHandler) writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, checkin.ErrNoOrder) {
		httpx.WriteError(w, http.StatusNotFound, "service order not found")
		return
	}
	h.logger.Error("service order lookup failed", "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "db error")
}

// recurrenceConfig maps the form onto the scheduler's input. Labels that cannot be parsed
// are reported here; missing values are left for the scheduler to reject.
func recurrenceConfig(req recurrenceRequest, order clinic.ServiceOrder) (clinic.RecurrenceConfig, error) {
	days, err := clinic.ParseWeekdays(req.Weekdays)
	if err != nil {
		return clinic.RecurrenceConfig{}, clinic.NewConfigError("weekdays", err.Error())
	}
	at, err := clinic.ParseTimeOfDay(req.Time)
	if err != nil {
		return clinic.RecurrenceConfig{}, clinic.NewConfigError("time", err.Error())
	}
	count := req.OccurrenceCount
	if count == 0 {
		count = order.TotalQuota
	}
	return clinic.RecurrenceConfig{
		Weekdays:        days,
		Time:            at,
		OccurrenceCount: count,
		EmployeeID:      strings.TrimSpace(req.EmployeeID),
		BranchID:        strings.TrimSpace(req.BranchID),
	}, nil
}

func writeConfigError(w http.ResponseWriter, err error) {
	if ce, ok := clinic.AsConfigError(err); ok {
		writeFieldError(w, ce.Field, ce.Message)
		return
	}
	httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
}

func writeFieldError(w http.ResponseWriter, field, msg string) {
	httpx.WriteJSON(w, http.StatusUnprocessableEntity, httpx.ErrorBody{Error: msg, Field: field})
}
