package clinic

import "time"

// MaxOccurrences bounds a single recurrence batch and, through it, the plans it may be built for.
const MaxOccurrences = 366

// ServiceOrder is a treatment plan with a fixed target number of sessions.
type ServiceOrder struct {
	ID           string
	Status       OrderStatus
	TotalQuota   int
	CustomerID   string
	CustomerName string
	EmployeeID   string
	BranchID     string
	Sessions     []Session
	CreatedAt    time.Time
}

// RecurrenceEligible reports whether recurring appointments may be configured for the plan.
// Plans with zero or one session never are.
func (o ServiceOrder) RecurrenceEligible() bool {
	return o.TotalQuota > 1
}

// Session is one recorded occurrence against a service order. Sessions are never updated.
type Session struct {
	ID             string
	ServiceOrderID string
	Status         SessionStatus
	Date           time.Time
	Time           TimeOfDay
	Note           string
	EmployeeID     string
	CreatedAt      time.Time
}

// RecurrenceConfig describes one weekly pattern to expand into appointments. It lives only for
// the duration of a single batch submission.
type RecurrenceConfig struct {
	Weekdays        []time.Weekday
	Time            TimeOfDay
	OccurrenceCount int
	EmployeeID      string
	BranchID        string
}
