package quota

import "github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"

// State is how much of a plan's session quota has been consumed.
type State struct {
	Realized     int     `json:"realized"`
	Total        int     `json:"total"`
	Remaining    int     `json:"remaining"`
	LimitReached bool    `json:"limit_reached"`
	Percentage   float64 `json:"percentage"`
}

// Evaluate counts the quota-consuming sessions against total. Only realized sessions consume
// quota; a plan with total 0 is reported as already at its limit.
func Evaluate(sessions []clinic.Session, total int) State {
	realized := 0
	for _, s := range sessions {
		if s.Status.ConsumesQuota() {
			realized++
		}
	}

	st := State{
		Realized:     realized,
		Total:        total,
		LimitReached: realized >= total,
	}
	if total > 0 {
		st.Percentage = float64(realized) / float64(total) * 100
	}
	if total > realized {
		st.Remaining = total - realized
	}
	return st
}
