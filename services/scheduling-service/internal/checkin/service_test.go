package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/quota"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/storage"
)

type memStore struct {
	mu        sync.Mutex
	orders    map[string]clinic.ServiceOrder
	sessions  map[string][]clinic.Session
	createErr error
	creates   int
}

func newMemStore(orders ...clinic.ServiceOrder) *memStore {
	m := &memStore{orders: map[string]clinic.ServiceOrder{}, sessions: map[string][]clinic.Session{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memStore) GetServiceOrder(_ context.Context, id string) (clinic.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return clinic.ServiceOrder{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) ListSessionsForOrder(_ context.Context, orderID string) ([]clinic.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]clinic.Session(nil), m.sessions[orderID]...), nil
}

func (m *memStore) ListOrdersForCustomer(_ context.Context, customerID string) ([]clinic.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []clinic.ServiceOrder
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) CreateSession(_ context.Context, s clinic.Session) (clinic.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return clinic.Session{}, m.createErr
	}
	s.ID = fmt.Sprintf("s-%d", len(m.sessions[s.ServiceOrderID])+1)
	m.sessions[s.ServiceOrderID] = append(m.sessions[s.ServiceOrderID], s)
	return s, nil
}

func (m *memStore) seed(orderID string, statuses ...clinic.SessionStatus) {
	for _, st := range statuses {
		m.sessions[orderID] = append(m.sessions[orderID], clinic.Session{ServiceOrderID: orderID, Status: st})
	}
}

func order(id string, total int) clinic.ServiceOrder {
	return clinic.ServiceOrder{ID: id, Status: clinic.OrderActive, TotalQuota: total, CustomerID: "cust-1"}
}

func request(orderID string, status clinic.SessionStatus) Request {
	return Request{
		ServiceOrderID: orderID,
		Status:         status,
		Date:           time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Time:           clinic.MustTimeOfDay(10, 0),
	}
}

func TestDecide_NoOrderSelected(t *testing.T) {
	svc := NewService(newMemStore(), nil)

	d, err := svc.Decide(context.Background(), "", clinic.SessionRealized)
	require.NoError(t, err)
	assert.Equal(t, quota.NoOrderSelected, d.State)
	assert.Nil(t, d.Quota)

	d, err = svc.Decide(context.Background(), "missing", clinic.SessionRealized)
	require.NoError(t, err)
	assert.Equal(t, quota.NoOrderSelected, d.State)
}

func TestDecide_UsesFreshSessions(t *testing.T) {
	store := newMemStore(order("so-1", 2))
	store.seed("so-1", clinic.SessionRealized)
	svc := NewService(store, nil)

	d, err := svc.Decide(context.Background(), "so-1", clinic.SessionRealized)
	require.NoError(t, err)
	assert.Equal(t, quota.Allowed, d.State)

	store.seed("so-1", clinic.SessionRealized)
	d, err = svc.Decide(context.Background(), "so-1", clinic.SessionRealized)
	require.NoError(t, err)
	assert.Equal(t, quota.Blocked, d.State)
	assert.Equal(t, "all 2 sessions of this plan have already been completed", d.Reason)
}

func TestCheckIn_Allowed(t *testing.T) {
	store := newMemStore(order("so-1", 3))
	store.seed("so-1", clinic.SessionRealized, clinic.SessionMissed)
	svc := NewService(store, nil)

	res, err := svc.CheckIn(context.Background(), request("so-1", clinic.SessionRealized))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Session.ID)
	assert.Equal(t, 2, res.Quota.Realized)
	assert.Equal(t, 1, res.Quota.Remaining)
	assert.False(t, res.Quota.LimitReached)
}

func TestCheckIn_BlockedDoesNotWrite(t *testing.T) {
	store := newMemStore(order("so-1", 8))
	store.seed("so-1", repeat(clinic.SessionRealized, 8)...)
	svc := NewService(store, nil)

	_, err := svc.CheckIn(context.Background(), request("so-1", clinic.SessionRealized))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)
	var be *BlockedError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "all 8 sessions of this plan have already been completed", be.Reason)
	assert.Zero(t, store.creates)
}

func TestCheckIn_NonRealizedAllowedPastLimit(t *testing.T) {
	store := newMemStore(order("so-1", 1))
	store.seed("so-1", clinic.SessionRealized)
	svc := NewService(store, nil)

	for _, st := range []clinic.SessionStatus{clinic.SessionMissed, clinic.SessionRescheduled, clinic.SessionCanceled} {
		_, err := svc.CheckIn(context.Background(), request("so-1", st))
		require.NoError(t, err, st.String())
	}
	assert.Equal(t, 3, store.creates)
}

func TestCheckIn_WriteTimeOverflowIsBlocked(t *testing.T) {
	store := newMemStore(order("so-1", 4))
	store.createErr = fmt.Errorf("%w: concurrent check-in", storage.ErrQuotaExceeded)
	svc := NewService(store, nil)

	_, err := svc.CheckIn(context.Background(), request("so-1", clinic.SessionRealized))
	assert.ErrorIs(t, err, ErrBlocked)
	assert.EqualError(t, err, "check-in blocked: all 4 sessions of this plan have already been completed")
}

func TestCheckIn_StoreFailure(t *testing.T) {
	store := newMemStore(order("so-1", 4))
	store.createErr = errors.New("connection refused")
	svc := NewService(store, nil)

	_, err := svc.CheckIn(context.Background(), request("so-1", clinic.SessionRealized))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBlocked)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCheckIn_Validation(t *testing.T) {
	svc := NewService(newMemStore(order("so-1", 4)), nil)

	req := request("so-1", clinic.SessionStatus(9))
	_, err := svc.CheckIn(context.Background(), req)
	assert.ErrorIs(t, err, clinic.ErrConfiguration)

	req = request("so-1", clinic.SessionRealized)
	req.Date = time.Time{}
	_, err = svc.CheckIn(context.Background(), req)
	assert.ErrorIs(t, err, clinic.ErrConfiguration)

	req = request("so-1", clinic.SessionRealized)
	req.Time = clinic.TimeOfDay{}
	_, err = svc.CheckIn(context.Background(), req)
	assert.ErrorIs(t, err, clinic.ErrConfiguration)

	_, err = svc.CheckIn(context.Background(), request("unknown", clinic.SessionRealized))
	assert.ErrorIs(t, err, ErrNoOrder)
}

func TestOpenOrders(t *testing.T) {
	done := order("so-2", 4)
	done.Status = clinic.OrderCompleted
	other := order("so-3", 4)
	other.CustomerID = "cust-2"
	svc := NewService(newMemStore(order("so-1", 4), done, other), nil)

	orders, err := svc.OpenOrders(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "so-1", orders[0].ID)
}

func TestQuota(t *testing.T) {
	store := newMemStore(order("so-1", 10))
	store.seed("so-1", clinic.SessionRealized, clinic.SessionRealized, clinic.SessionCanceled)
	svc := NewService(store, nil)

	st, err := svc.Quota(context.Background(), "so-1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Realized)
	assert.InDelta(t, 20.0, st.Percentage, 0.001)

	_, err = svc.Quota(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNoOrder)
}

func repeat(s clinic.SessionStatus, n int) []clinic.SessionStatus {
	out := make([]clinic.SessionStatus, n)
	for i := range out {
		out[i] = s
	}
	return out
}
