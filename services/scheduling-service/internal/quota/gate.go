package quota

import (
	"fmt"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
)

// GateState is the check-in gate's verdict for the current input.
type GateState int

const (
	NoOrderSelected GateState = iota
	Evaluating
	Allowed
	Blocked
)

func (s GateState) String() string {
	switch s {
	case NoOrderSelected:
		return "no_order_selected"
	case Evaluating:
		return "evaluating"
	case Allowed:
		return "allowed"
	case Blocked:
		return "blocked"
	default:
		return fmt.Sprintf("gate_state(%d)", int(s))
	}
}

func (s GateState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Decision is the outcome of one gate evaluation. Quota is nil when no order was selected.
type Decision struct {
	State  GateState `json:"state"`
	Quota  *State    `json:"quota,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// CanSubmit reports whether the caller may go ahead with the session write.
func (d Decision) CanSubmit() bool {
	return d.State == Allowed
}

// Gate decides whether a session with the requested status may be recorded against order.
// It keeps no memory between calls: the decision is a function of the order's current
// sessions and the requested status only. It pre-filters for the user; the session writer
// must still reject overflow at write time.
func Gate(order *clinic.ServiceOrder, requested clinic.SessionStatus) Decision {
	if order == nil {
		return Decision{State: NoOrderSelected}
	}

	st := Evaluate(order.Sessions, order.TotalQuota)
	d := Decision{State: Evaluating, Quota: &st}

	// Only a realized session consumes quota; every other status passes. Whether the status
	// itself is acceptable is for the session writer to decide.
	if requested == clinic.SessionRealized && st.LimitReached {
		d.State = Blocked
		d.Reason = BlockedReason(st.Total)
		return d
	}
	d.State = Allowed
	return d
}

func BlockedReason(total int) string {
	return fmt.Sprintf("all %d sessions of this plan have already been completed", total)
}
