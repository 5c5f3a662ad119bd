package handlers

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/quota"
)

const dateLayout = "2006-01-02"

// Required fields of the recurrence form are left to the scheduler so its messages reach
// the user unchanged; the tags here only bound sizes and formats.
type recurrenceRequest struct {
	Weekdays        []string `json:"weekdays" validate:"max=7,dive,max=16"`
	Time            string   `json:"time" validate:"max=5"`
	OccurrenceCount int      `json:"occurrence_count" validate:"gte=0,lte=366"`
	EmployeeID      string   `json:"employee_id" validate:"max=64"`
	BranchID        string   `json:"branch_id" validate:"max=64"`
}

type previewRequest struct {
	Weekdays []string `json:"weekdays" validate:"required,min=1,max=7,dive,required,max=16"`
	Time     string   `json:"time" validate:"required,max=5"`
	Count    int      `json:"count" validate:"required,min=1,max=366"`
}

type previewResponse struct {
	Next  *time.Time  `json:"next,omitempty"`
	Dates []time.Time `json:"dates"`
}

type sessionRequest struct {
	ServiceOrderID string `json:"service_order_id" validate:"required,max=64"`
	Status         string `json:"status" validate:"required,max=16"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Time           string `json:"time" validate:"required,max=5"`
	Note           string `json:"note" validate:"max=500"`
	EmployeeID     string `json:"employee_id" validate:"max=64"`
}

type sessionView struct {
	ID             string               `json:"id"`
	ServiceOrderID string               `json:"service_order_id"`
	Status         clinic.SessionStatus `json:"status"`
	Date           string               `json:"date"`
	Time           clinic.TimeOfDay     `json:"time"`
	Note           string               `json:"note,omitempty"`
	EmployeeID     string               `json:"employee_id,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

type sessionResponse struct {
	Session sessionView `json:"session"`
	Quota   quota.State `json:"quota"`
}

type orderView struct {
	ID           string             `json:"id"`
	Status       clinic.OrderStatus `json:"status"`
	TotalQuota   int                `json:"total_quota"`
	CustomerID   string             `json:"customer_id"`
	CustomerName string             `json:"customer_name"`
	EmployeeID   string             `json:"employee_id,omitempty"`
	BranchID     string             `json:"branch_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

func newSessionView(s clinic.Session) sessionView {
	return sessionView{
		ID:             s.ID,
		ServiceOrderID: s.ServiceOrderID,
		Status:         s.Status,
		Date:           s.Date.Format(dateLayout),
		Time:           s.Time,
		Note:           s.Note,
		EmployeeID:     s.EmployeeID,
		CreatedAt:      s.CreatedAt,
	}
}

func newOrderView(o clinic.ServiceOrder) orderView {
	return orderView{
		ID:           o.ID,
		Status:       o.Status,
		TotalQuota:   o.TotalQuota,
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		EmployeeID:   o.EmployeeID,
		BranchID:     o.BranchID,
		CreatedAt:    o.CreatedAt,
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// firstInvalidField returns the JSON name of the first failing field, if err is a
// validation error.
func firstInvalidField(err error) (string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", false
	}
	field := verrs[0].Field()
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	return field, true
}
