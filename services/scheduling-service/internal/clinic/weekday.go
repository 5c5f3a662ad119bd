package clinic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdayLabels = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday, "dom": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "segunda": time.Monday, "segunda-feira": time.Monday, "seg": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "terca": time.Tuesday, "terça": time.Tuesday, "terca-feira": time.Tuesday, "terça-feira": time.Tuesday, "ter": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "quarta": time.Wednesday, "quarta-feira": time.Wednesday, "qua": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "quinta": time.Thursday, "quinta-feira": time.Thursday, "qui": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "sexta": time.Friday, "sexta-feira": time.Friday, "sex": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday, "sab": time.Saturday, "sáb": time.Saturday,
}

// ParseWeekday maps a weekday label (English or Portuguese, full or abbreviated) or a digit
// 0..6 to its day of week, 0 being Sunday.
func ParseWeekday(label string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if d, ok := weekdayLabels[key]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("unknown weekday %q", label)
}

func ParseWeekdays(labels []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(labels))
	for _, l := range labels {
		d, err := ParseWeekday(l)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
