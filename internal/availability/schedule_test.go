package availability

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	valid := map[string]Clock{
		"00:00": 0,
		"9:00":  540,
		"09:00": 540,
		"17:45": 1065,
		"24:00": EndOfDay,
	}
	for raw, want := range valid {
		got, err := ParseClock(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "9", "9:5", "25:00", "24:30", "12:60", "ab:cd", "-1:00", "123:00"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseReportsMalformedEntries(t *testing.T) {
	schedule, issues, err := Parse([]byte(`[
		{"dayOfWeek":1,"startTime":"09:00","endTime":"10:00"},
		{"dayOfWeek":7,"startTime":"09:00","endTime":"10:00"},
		{"dayOfWeek":2,"startTime":"11:00","endTime":"10:00"},
		{"dayOfWeek":3},
		"monday"
	]`))
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, Window{Day: time.Monday, Start: 540, End: 600}, schedule[0])

	paths := make([]string, 0, len(issues))
	for _, issue := range issues {
		paths = append(paths, issue.Path)
	}
	assert.Equal(t, []string{"[1]", "[2]", "[3]", "[4]"}, paths)
}

func TestParseAcceptsWholeFloatDays(t *testing.T) {
	schedule, issues, err := Parse([]byte(`[
		{"dayOfWeek":1.0,"startTime":"09:00","endTime":"10:00"},
		{"dayOfWeek":2e0,"startTime":"11:00","endTime":"12:00"},
		{"dayOfWeek":3.5,"startTime":"09:00","endTime":"10:00"},
		{"dayOfWeek":-1,"startTime":"09:00","endTime":"10:00"}
	]`))
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	assert.Equal(t, time.Monday, schedule[0].Day)
	assert.Equal(t, time.Tuesday, schedule[1].Day)
	require.Len(t, issues, 2)
	assert.Equal(t, "[2]", issues[0].Path)
	assert.Equal(t, "[3]", issues[1].Path)
}

func TestParseMapFormIssues(t *testing.T) {
	schedule, issues, err := Parse([]byte(`{
		"funday":{"available":true,"slots":["09:00-10:00"]},
		"Monday":{"available":true,"slots":["09:00", 42, {"start":"13:00"}, "14:00-15:00"]}
	}`))
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, time.Monday, schedule[0].Day)
	assert.Len(t, issues, 4)
}

func TestParseRejectsScalars(t *testing.T) {
	_, _, err := Parse([]byte(`"always"`))
	assert.ErrorIs(t, err, ErrUnsupportedShape)

	_, _, err = Parse([]byte(`[1,`))
	assert.Error(t, err)
}

func TestScheduleMarshalsToListForm(t *testing.T) {
	schedule := mustParse(t, `{"wednesday":{"available":true,"slots":["9:00-9:30"]},"sunday":{"available":true,"slots":[{"start":"18:00","end":"24:00"}]}}`)

	raw, err := json.Marshal(schedule)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"dayOfWeek":0,"startTime":"18:00","endTime":"24:00"},
		{"dayOfWeek":3,"startTime":"09:00","endTime":"09:30"}
	]`, string(raw))

	again, issues, err := Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, schedule, again)
}

func TestScheduleDaysAndForDay(t *testing.T) {
	schedule := mustParse(t, `[
		{"dayOfWeek":5,"startTime":"15:00","endTime":"16:00"},
		{"dayOfWeek":5,"startTime":"08:00","endTime":"09:00"},
		{"dayOfWeek":0,"startTime":"08:00","endTime":"09:00"}
	]`)

	assert.Equal(t, []time.Weekday{time.Sunday, time.Friday}, schedule.Days())
	friday := schedule.ForDay(time.Friday)
	require.Len(t, friday, 2)
	assert.Equal(t, Clock(480), friday[0].Start)
	assert.Empty(t, schedule.ForDay(time.Monday))
}
