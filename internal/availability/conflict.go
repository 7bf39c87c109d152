package availability

import "time"

// Interval is a half-open [Start, End) span of time.
type Interval struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [s1,e1) and [s2,e2) share any instant. Adjacent
// intervals do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// FirstConflict returns the first existing interval overlapping [start,end).
func FirstConflict(existing []Interval, start, end time.Time) (Interval, bool) {
	for _, iv := range existing {
		if Overlaps(iv.Start, iv.End, start, end) {
			return iv, true
		}
	}
	return Interval{}, false
}
