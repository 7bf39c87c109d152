// Package availability models a tutor's recurring weekly availability and
// decides whether a proposed lesson slot fits it.
package availability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedShape is returned when a stored schedule is neither a list nor a day map.
var ErrUnsupportedShape = errors.New("availability schedule must be a list or a day map")

// dayNames indexes time.Weekday, Sunday first.
var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Clock is a time of day expressed in minutes since midnight. 24:00 is allowed as a closing time.
type Clock int

// EndOfDay is the latest representable clock value.
const EndOfDay Clock = 24 * 60

// ParseClock parses "H:MM" or "HH:MM" in 24 hour notation.
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	return Clock(hours*60 + minutes), nil
}

// ClockOf returns the wall clock of t in its own location, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// String renders the clock as zero padded HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Format12h renders the clock as "9:00 AM".
func (c Clock) Format12h() string {
	hours := (int(c) / 60) % 24
	minutes := int(c) % 60
	suffix := "AM"
	if hours >= 12 {
		suffix = "PM"
	}
	display := hours % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, minutes, suffix)
}

// Window is a half-open [Start, End) interval on a weekday.
type Window struct {
	Day   time.Weekday
	Start Clock
	End   Clock
}

// Contains reports whether c falls inside the window. The end is exclusive.
func (w Window) Contains(c Clock) bool {
	return w.Start <= c && c < w.End
}

// Schedule is the canonical form of every accepted schedule shape.
type Schedule []Window

// Issue describes an entry skipped while parsing a schedule.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Entry is the persisted list form of a window.
type Entry struct {
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// DayName returns the capitalised English name of the weekday.
func DayName(day time.Weekday) string {
	return day.String()
}

// ParseDay maps "monday" (any case) to its weekday.
func ParseDay(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range dayNames {
		if candidate == name {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// Parse normalizes a stored schedule into canonical windows. Both the list form
// ([{dayOfWeek,startTime,endTime}]) and the map form ({"monday":{available,slots}})
// are accepted. Malformed entries are skipped and reported as issues; an error is
// returned only when the document itself cannot be interpreted.
func Parse(raw []byte) (Schedule, []Issue, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Schedule{}, nil, nil
	}

	switch trimmed[0] {
	case '[':
		return parseList(trimmed)
	case '{':
		return parseMap(trimmed)
	default:
		return nil, nil, ErrUnsupportedShape
	}
}

type listEntry struct {
	DayOfWeek *json.Number `json:"dayOfWeek"`
	StartTime *string      `json:"startTime"`
	EndTime   *string      `json:"endTime"`
}

// weekday accepts whole numbers in any JSON notation, so 1 and 1.0 agree.
func (e listEntry) weekday() (time.Weekday, bool) {
	if e.DayOfWeek == nil {
		return 0, false
	}
	f, err := e.DayOfWeek.Float64()
	if err != nil || f != math.Trunc(f) || f < 0 || f > 6 {
		return 0, false
	}
	return time.Weekday(int(f)), true
}

func parseList(raw []byte) (Schedule, []Issue, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("decode schedule list: %w", err)
	}

	schedule := make(Schedule, 0, len(items))
	var issues []Issue
	for i, item := range items {
		path := fmt.Sprintf("[%d]", i)
		var entry listEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			issues = append(issues, Issue{Path: path, Message: "entry must be an object with dayOfWeek, startTime and endTime"})
			continue
		}
		day, ok := entry.weekday()
		if !ok {
			issues = append(issues, Issue{Path: path, Message: "dayOfWeek must be between 0 and 6"})
			continue
		}
		if entry.StartTime == nil || entry.EndTime == nil {
			issues = append(issues, Issue{Path: path, Message: "startTime and endTime are required"})
			continue
		}
		window, err := newWindow(day, *entry.StartTime, *entry.EndTime)
		if err != nil {
			issues = append(issues, Issue{Path: path, Message: err.Error()})
			continue
		}
		schedule = append(schedule, window)
	}
	return schedule, issues, nil
}

type dayEntry struct {
	Available bool              `json:"available"`
	Slots     []json.RawMessage `json:"slots"`
}

type slotObject struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func parseMap(raw []byte) (Schedule, []Issue, error) {
	var days map[string]json.RawMessage
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, nil, fmt.Errorf("decode schedule map: %w", err)
	}

	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var issues []Issue
	byDay := make(map[time.Weekday][]Window, len(days))
	for _, key := range keys {
		day, ok := ParseDay(key)
		if !ok {
			issues = append(issues, Issue{Path: key, Message: "unknown day name"})
			continue
		}
		var entry dayEntry
		if err := json.Unmarshal(days[key], &entry); err != nil {
			issues = append(issues, Issue{Path: key, Message: "day must be an object with available and slots"})
			continue
		}
		if !entry.Available {
			continue
		}
		for i, slot := range entry.Slots {
			path := fmt.Sprintf("%s.slots[%d]", key, i)
			start, end, err := decodeSlot(slot)
			if err != nil {
				issues = append(issues, Issue{Path: path, Message: err.Error()})
				continue
			}
			window, err := newWindow(day, start, end)
			if err != nil {
				issues = append(issues, Issue{Path: path, Message: err.Error()})
				continue
			}
			byDay[day] = append(byDay[day], window)
		}
	}

	schedule := Schedule{}
	for day := time.Sunday; day <= time.Saturday; day++ {
		schedule = append(schedule, byDay[day]...)
	}
	return schedule, issues, nil
}

func decodeSlot(raw json.RawMessage) (string, string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		start, end, ok := strings.Cut(text, "-")
		if !ok {
			return "", "", fmt.Errorf("slot %q must look like HH:MM-HH:MM", text)
		}
		return start, end, nil
	}

	var obj slotObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", "", errors.New("slot must be a string or an object")
	}
	start, end := obj.Start, obj.End
	if start == "" {
		start = obj.StartTime
	}
	if end == "" {
		end = obj.EndTime
	}
	if start == "" || end == "" {
		return "", "", errors.New("slot object needs start/end or startTime/endTime")
	}
	return start, end, nil
}

func newWindow(day time.Weekday, rawStart, rawEnd string) (Window, error) {
	start, err := ParseClock(rawStart)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseClock(rawEnd)
	if err != nil {
		return Window{}, err
	}
	if start >= end {
		return Window{}, fmt.Errorf("start %s must be before end %s", start, end)
	}
	return Window{Day: day, Start: start, End: end}, nil
}

// ForDay returns the windows declared for day ordered by start time.
func (s Schedule) ForDay(day time.Weekday) []Window {
	var windows []Window
	for _, w := range s {
		if w.Day == day {
			windows = append(windows, w)
		}
	}
	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Start == windows[j].Start {
			return windows[i].End < windows[j].End
		}
		return windows[i].Start < windows[j].Start
	})
	return windows
}

// Days returns the weekdays with at least one window, Sunday first.
func (s Schedule) Days() []time.Weekday {
	var seen [7]bool
	for _, w := range s {
		seen[w.Day] = true
	}
	var days []time.Weekday
	for i, ok := range seen {
		if ok {
			days = append(days, time.Weekday(i))
		}
	}
	return days
}

// Entries converts the schedule into its persisted list form.
func (s Schedule) Entries() []Entry {
	entries := make([]Entry, 0, len(s))
	for _, w := range s {
		entries = append(entries, Entry{
			DayOfWeek: int(w.Day),
			StartTime: w.Start.String(),
			EndTime:   w.End.String(),
		})
	}
	return entries
}

// MarshalJSON writes the canonical list form.
func (s Schedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Entries())
}
