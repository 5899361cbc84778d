package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventTime wraps time.Time and accepts the timestamp shapes the dashboard
// backend actually emits: RFC 3339 with a zone suffix for synced events and
// zoneless ISO timestamps for virtual entries such as birthdays. Both end up
// on the viewer's local calendar: zoned values are converted to local time,
// zoneless values are interpreted as local wall-clock time. Calendar helpers
// like InMonth and IsAllDay therefore always compare local dates.
type EventTime struct {
	time.Time
}

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NewEventTime wraps a time.Time in an EventTime.
func NewEventTime(t time.Time) EventTime {
	return EventTime{Time: t}
}

// ParseEventTime parses a backend timestamp string.
func ParseEventTime(s string) (EventTime, error) {
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if hasZoneSuffix(s) {
				// Zoned input: convert to the viewer's local calendar.
				t = t.In(time.Local)
			} else if t.Location() == time.UTC {
				// Zoneless input: reinterpret the wall clock as local time.
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
			}
			return EventTime{Time: t}, nil
		}
	}
	return EventTime{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// hasZoneSuffix reports whether s carries an explicit UTC designator or a
// trailing +hh:mm / -hh:mm offset.
func hasZoneSuffix(s string) bool {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return true
	}
	if len(s) < 6 {
		return false
	}
	tail := s[len(s)-6:]
	return (tail[0] == '+' || tail[0] == '-') && tail[3] == ':'
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *EventTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a JSON string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseEventTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed.Time
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}

// CalendarEvent is one entry in the snapshot returned by the dashboard
// calendar endpoint. Events are immutable once fetched; the displayed list is
// always a pure filter of the last snapshot.
type CalendarEvent struct {
	ID         string     `json:"id,omitempty"`
	Summary    string     `json:"summary"`
	Start      EventTime  `json:"start"`
	End        *EventTime `json:"end,omitempty"`
	Person     string     `json:"person,omitempty"`
	IsLocal    bool       `json:"is_local,omitempty"`
	IsBirthday bool       `json:"is_birthday,omitempty"`
}

// IsAllDay reports whether the event uses the all-day sentinel: a start
// time-of-day of exactly local midnight. This conflates genuine midnight-start
// events with all-day events; the rule is kept because the backend encodes
// all-day entries exactly this way.
func (e *CalendarEvent) IsAllDay() bool {
	return e.Start.Hour() == 0 && e.Start.Minute() == 0
}

// InMonth reports whether the event starts within the given calendar month,
// compared by local calendar date.
func (e *CalendarEvent) InMonth(year int, month time.Month) bool {
	if e.Start.IsZero() {
		return false
	}
	return e.Start.Year() == year && e.Start.Month() == month
}

// OccursOn reports whether the event starts on the given calendar day.
func (e *CalendarEvent) OccursOn(year int, month time.Month, day int) bool {
	return e.InMonth(year, month) && e.Start.Day() == day
}

// Editable reports whether the event may be mutated: only entries from the
// local store, and never birthdays.
func (e *CalendarEvent) Editable() bool {
	return e.IsLocal && !e.IsBirthday
}

// LocalEventInput is the create payload for a local event.
type LocalEventInput struct {
	Summary   string     `json:"summary"`
	StartTime EventTime  `json:"start_time"`
	EndTime   *EventTime `json:"end_time"`
	IsAllDay  bool       `json:"is_all_day"`
}

// SummaryUpdate is the title-only update payload for a local event.
type SummaryUpdate struct {
	Summary string `json:"summary"`
}
