package clinic

import (
	"fmt"
	"strconv"
	"strings"
)

// SessionStatus is the outcome recorded for one session. Values match the smallint stored in
// sessions.status.
type SessionStatus int

const (
	SessionRealized    SessionStatus = 1
	SessionMissed      SessionStatus = 2
	SessionRescheduled SessionStatus = 3
	SessionCanceled    SessionStatus = 4
)

func (s SessionStatus) String() string {
	switch s {
	case SessionRealized:
		return "realized"
	case SessionMissed:
		return "missed"
	case SessionRescheduled:
		return "rescheduled"
	case SessionCanceled:
		return "canceled"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionRealized, SessionMissed, SessionRescheduled, SessionCanceled:
		return true
	default:
		return false
	}
}

// ConsumesQuota reports whether a session with this status counts against the plan's total.
// Only delivered treatment does.
func (s SessionStatus) ConsumesQuota() bool {
	switch s {
	case SessionRealized:
		return true
	case SessionMissed, SessionRescheduled, SessionCanceled:
		return false
	default:
		return false
	}
}

func (s SessionStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid session status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *SessionStatus) UnmarshalText(b []byte) error {
	v, err := ParseSessionStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

var sessionStatusLabels = map[string]SessionStatus{
	"realized":    SessionRealized,
	"realizada":   SessionRealized,
	"missed":      SessionMissed,
	"falta":       SessionMissed,
	"faltou":      SessionMissed,
	"rescheduled": SessionRescheduled,
	"remarcada":   SessionRescheduled,
	"canceled":    SessionCanceled,
	"cancelled":   SessionCanceled,
	"cancelada":   SessionCanceled,
}

// ParseSessionStatus accepts the English or Portuguese label, or the numeric code.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := sessionStatusLabels[key]; ok {
		return s, nil
	}
	if n, err := strconv.Atoi(key); err == nil && SessionStatus(n).Valid() {
		return SessionStatus(n), nil
	}
	return 0, fmt.Errorf("unknown session status %q", raw)
}

// OrderStatus is the lifecycle state of a service order.
type OrderStatus int

const (
	OrderActive    OrderStatus = 1
	OrderCompleted OrderStatus = 2
	OrderCanceled  OrderStatus = 3
)

func (s OrderStatus) String() string {
	switch s {
	case OrderActive:
		return "active"
	case OrderCompleted:
		return "completed"
	case OrderCanceled:
		return "canceled"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// IsOpen reports whether new check-ins may target an order with this status.
func (s OrderStatus) IsOpen() bool {
	switch s {
	case OrderActive:
		return true
	case OrderCompleted, OrderCanceled:
		return false
	default:
		return false
	}
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
