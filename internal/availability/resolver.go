package availability

import (
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of an availability check. Reason is set only when the
// slot is rejected.
type Result struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Check reports whether a lesson starting at clock on day fits the schedule.
// Any window with start <= clock < end accepts the slot; overlapping windows are
// tolerated.
func Check(schedule Schedule, day time.Weekday, clock Clock) Result {
	for _, w := range schedule {
		if w.Day == day && w.Contains(clock) {
			return Result{Available: true}
		}
	}
	return Result{Available: false, Reason: rejectionReason(schedule, day, clock)}
}

// CheckAt resolves the wall clock of at inside loc and checks it against the schedule.
func CheckAt(schedule Schedule, at time.Time, loc *time.Location) Result {
	day, clock := LocalSlot(at, loc)
	return Check(schedule, day, clock)
}

// LocalSlot returns the weekday and clock of t as seen in loc.
func LocalSlot(t time.Time, loc *time.Location) (time.Weekday, Clock) {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Weekday(), ClockOf(t)
}

func rejectionReason(schedule Schedule, day time.Weekday, clock Clock) string {
	prefix := fmt.Sprintf("Tutor is not available at %s on %s.", clock.Format12h(), DayName(day))

	if windows := schedule.ForDay(day); len(windows) > 0 {
		ranges := make([]string, 0, len(windows))
		for _, w := range windows {
			ranges = append(ranges, FormatWindow(w))
		}
		return fmt.Sprintf("%s Available slots on %s: %s", prefix, DayName(day), strings.Join(ranges, ", "))
	}

	days := schedule.Days()
	if len(days) == 0 {
		return prefix + " Tutor has not set any availability."
	}
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, DayName(d))
	}
	return fmt.Sprintf("%s Tutor is available on: %s", prefix, strings.Join(names, ", "))
}

// FormatWindow renders a window as "9:00 AM - 12:00 PM".
func FormatWindow(w Window) string {
	return w.Start.Format12h() + " - " + w.End.Format12h()
}
