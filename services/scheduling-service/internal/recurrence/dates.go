package recurrence

import (
	"sort"
	"time"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/clinic"
)

// Generate returns the next count occurrences of the weekly slots described by days and at,
// strictly after now, in chronological order.
//
// Weeks start on Sunday. A slot on today's date is used only if its time of day is still ahead
// of now; past slots are skipped, never moved. All arithmetic happens in now's location using
// wall-clock dates, so the result follows that zone's calendar (including DST shifts).
//
// An empty day set or a non-positive count yields nil.
func Generate(days []time.Weekday, at clinic.TimeOfDay, count int, now time.Time) []time.Time {
	sorted := normalizeDays(days)
	if len(sorted) == 0 || count <= 0 {
		return nil
	}

	weekStart := startOfWeek(now)
	out := make([]time.Time, 0, count)
	for cursor := 0; len(out) < count; {
		day := weekStart.AddDate(0, 0, int(sorted[cursor]))
		candidate := at.On(day)
		if isUpcoming(candidate, now) {
			out = append(out, candidate)
		}

		cursor++
		if cursor == len(sorted) {
			cursor = 0
			weekStart = weekStart.AddDate(0, 0, 7)
		}
	}
	return out
}

// Next returns the first occurrence of the pattern after now.
func Next(days []time.Weekday, at clinic.TimeOfDay, now time.Time) (time.Time, bool) {
	dates := Generate(days, at, 1, now)
	if len(dates) == 0 {
		return time.Time{}, false
	}
	return dates[0], true
}

// isUpcoming: a later calendar date is always usable; today's date only if the slot's time of
// day has not been reached yet.
func isUpcoming(candidate, now time.Time) bool {
	cy, cm, cd := candidate.Date()
	ny, nm, nd := now.Date()
	candidateDay := time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)

	switch {
	case candidateDay.Before(today):
		return false
	case candidateDay.After(today):
		return true
	default:
		return clockOf(candidate) > clockOf(now)
	}
}

func clockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

func startOfWeek(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, now.Location())
}

func normalizeDays(days []time.Weekday) []time.Weekday {
	var seen [7]bool
	out := make([]time.Weekday, 0, 7)
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
