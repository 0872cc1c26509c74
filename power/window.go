package power

import "time"

// Window is an inclusive time range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t lies in the window, both ends included. A zero
// window contains everything.
func (w Window) Contains(t time.Time) bool {
	if w.From.IsZero() && w.To.IsZero() {
		return true
	}
	return !t.Before(w.From) && !t.After(w.To)
}

// Today spans from local midnight of now up to now.
func Today(now time.Time) Window {
	y, m, d := now.Date()
	return Window{From: time.Date(y, m, d, 0, 0, 0, 0, now.Location()), To: now}
}

// Day spans one full calendar day in the location of day.
func Day(day time.Time) Window {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return Window{From: from, To: from.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}

// LastDays spans from midnight of the calendar day n days before now up to
// now, in the location of now.
func LastDays(now time.Time, n int) Window {
	return Window{From: Day(now.AddDate(0, 0, -n)).From, To: now}
}
