package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
)

func sessions(statuses ...clinic.SessionStatus) []clinic.Session {
	out := make([]clinic.Session, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, clinic.Session{Status: s})
	}
	return out
}

func repeat(s clinic.SessionStatus, n int) []clinic.SessionStatus {
	out := make([]clinic.SessionStatus, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestEvaluate_CountsOnlyRealized(t *testing.T) {
	st := Evaluate(sessions(
		clinic.SessionRealized,
		clinic.SessionMissed,
		clinic.SessionRealized,
		clinic.SessionCanceled,
		clinic.SessionRescheduled,
	), 8)

	assert.Equal(t, 2, st.Realized)
	assert.Equal(t, 8, st.Total)
	assert.Equal(t, 6, st.Remaining)
	assert.False(t, st.LimitReached)
	assert.InDelta(t, 25.0, st.Percentage, 1e-9)
}

func TestEvaluate_NonRealizedNeverChangesRealized(t *testing.T) {
	base := sessions(clinic.SessionRealized, clinic.SessionRealized)
	before := Evaluate(base, 4)

	more := append(append([]clinic.Session{}, base...), sessions(clinic.SessionMissed, clinic.SessionCanceled)...)
	after := Evaluate(more, 4)

	assert.Equal(t, before, after)
	assert.Equal(t, before, Evaluate(base, 4))
}

func TestEvaluate_ZeroTotal(t *testing.T) {
	st := Evaluate(nil, 0)
	assert.Equal(t, 0.0, st.Percentage)
	assert.True(t, st.LimitReached)
	assert.Equal(t, 0, st.Remaining)
}

func TestEvaluate_OverConsumed(t *testing.T) {
	st := Evaluate(sessions(repeat(clinic.SessionRealized, 3)...), 2)
	assert.True(t, st.LimitReached)
	assert.Equal(t, 0, st.Remaining)
	assert.InDelta(t, 150.0, st.Percentage, 1e-9)
}

func TestGate_NoOrderSelected(t *testing.T) {
	d := Gate(nil, clinic.SessionRealized)
	assert.Equal(t, NoOrderSelected, d.State)
	assert.Nil(t, d.Quota)
	assert.False(t, d.CanSubmit())
}

func TestGate_BoundaryAtQuota(t *testing.T) {
	order := &clinic.ServiceOrder{ID: "os-1", TotalQuota: 10, Sessions: sessions(repeat(clinic.SessionRealized, 10)...)}

	blocked := Gate(order, clinic.SessionRealized)
	assert.Equal(t, Blocked, blocked.State)
	assert.Equal(t, "all 10 sessions of this plan have already been completed", blocked.Reason)
	require.NotNil(t, blocked.Quota)
	assert.Equal(t, 10, blocked.Quota.Realized)
	assert.False(t, blocked.CanSubmit())

	for _, s := range []clinic.SessionStatus{clinic.SessionMissed, clinic.SessionRescheduled, clinic.SessionCanceled} {
		d := Gate(order, s)
		assert.Equal(t, Allowed, d.State, s.String())
		assert.Empty(t, d.Reason)
	}
}

func TestGate_AllowsRealizedBelowQuota(t *testing.T) {
	order := &clinic.ServiceOrder{TotalQuota: 10, Sessions: sessions(repeat(clinic.SessionRealized, 9)...)}
	d := Gate(order, clinic.SessionRealized)
	assert.Equal(t, Allowed, d.State)
	assert.True(t, d.CanSubmit())
}

func TestGate_RecomputedOnEveryCall(t *testing.T) {
	order := clinic.ServiceOrder{TotalQuota: 1}
	assert.Equal(t, Allowed, Gate(&order, clinic.SessionRealized).State)

	order.Sessions = sessions(clinic.SessionRealized)
	assert.Equal(t, Blocked, Gate(&order, clinic.SessionRealized).State)

	assert.Equal(t, Allowed, Gate(&order, clinic.SessionMissed).State)
}

func TestGate_NonRealizedStatusAllowedAtLimit(t *testing.T) {
	order := clinic.ServiceOrder{TotalQuota: 1, Sessions: sessions(clinic.SessionRealized)}
	for _, st := range []clinic.SessionStatus{clinic.SessionStatus(0), clinic.SessionStatus(42)} {
		d := Gate(&order, st)
		assert.Equal(t, Allowed, d.State, "status %d", int(st))
		assert.Empty(t, d.Reason)
		require.NotNil(t, d.Quota)
		assert.True(t, d.Quota.LimitReached)
	}
}

func TestGateState_String(t *testing.T) {
	assert.Equal(t, "no_order_selected", NoOrderSelected.String())
	assert.Equal(t, "evaluating", Evaluating.String())
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "blocked", Blocked.String())
}
