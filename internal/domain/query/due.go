package query

import "time"

// DueBucket classifies a due date relative to the evaluation time.
type DueBucket string

const (
	DueOverdue   DueBucket = "overdue"
	DueToday     DueBucket = "today"
	DueThisWeek  DueBucket = "this-week"
	DueThisMonth DueBucket = "this-month"
)

// Contains reports whether due falls in the bucket, evaluated relative to
// now. Both times are compared in now's location. Weeks are Sunday-based:
// the week containing now starts at midnight of now minus now.Weekday()
// days and spans 7 days.
func (b DueBucket) Contains(due, now time.Time) bool {
	due = due.In(now.Location())

	switch b {
	case DueOverdue:
		return due.Before(startOfDay(now))
	case DueToday:
		return sameDay(due, now)
	case DueThisWeek:
		start := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
		end := start.AddDate(0, 0, 7)
		return !due.Before(start) && due.Before(end)
	case DueThisMonth:
		return due.Year() == now.Year() && due.Month() == now.Month()
	default:
		return true
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
