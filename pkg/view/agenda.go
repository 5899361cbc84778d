package view

import (
	"fmt"
	"sort"
	"time"

	"github.com/niklasbrandt/openzero/internal/models"
)

// DefaultMaxEntries caps the month agenda when no day is selected.
const DefaultMaxEntries = 15

// AllDayLabel is shown instead of a time-of-day for all-day entries.
const AllDayLabel = "All day"

// AgendaEntry is one row of the agenda list.
type AgendaEntry struct {
	Event     models.CalendarEvent
	TimeLabel string
	Person    string
	Editable  bool
}

// BuildAgenda maps the event snapshot to agenda rows. With a selected day the
// rows are that day's events in fetch order; without one they are the month's
// events sorted ascending by start time and capped at maxEntries (pass 0 for
// the default cap).
func BuildAgenda(year int, month time.Month, selectedDay int, events []models.CalendarEvent, maxEntries int) []AgendaEntry {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	var picked []models.CalendarEvent
	if selectedDay > 0 {
		for _, e := range events {
			if e.OccursOn(year, month, selectedDay) {
				picked = append(picked, e)
			}
		}
	} else {
		for _, e := range events {
			if e.InMonth(year, month) {
				picked = append(picked, e)
			}
		}
		sort.SliceStable(picked, func(i, j int) bool {
			return picked[i].Start.Before(picked[j].Start.Time)
		})
		if len(picked) > maxEntries {
			picked = picked[:maxEntries]
		}
	}

	entries := make([]AgendaEntry, 0, len(picked))
	for _, e := range picked {
		entries = append(entries, AgendaEntry{
			Event:     e,
			TimeLabel: timeLabel(e),
			Person:    e.Person,
			Editable:  e.Editable(),
		})
	}
	return entries
}

// AgendaTitle returns the agenda heading for the current selection.
func AgendaTitle(month time.Month, selectedDay int) string {
	if selectedDay > 0 {
		return fmt.Sprintf("Schedule for %s %d", month, selectedDay)
	}
	return "Coming up"
}

func timeLabel(e models.CalendarEvent) string {
	if e.IsAllDay() {
		return AllDayLabel
	}
	return e.Start.Format("15:04")
}
