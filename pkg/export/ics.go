// Package export serializes calendar months to iCalendar documents so the
// dashboard's agenda can be imported into external calendar clients.
package export

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/niklasbrandt/openzero/internal/models"
)

// MonthCalendar builds an iCalendar document containing the events of the
// given month. Events outside the month are skipped. All-day entries are
// written as date-valued components; timed entries carry their start and,
// when known, end timestamps.
func MonthCalendar(year int, month time.Month, title string, events []models.CalendarEvent) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	if title != "" {
		cal.SetXWRCalName(title)
	}

	now := time.Now()
	for i := range events {
		event := &events[i]
		if !event.InMonth(year, month) {
			continue
		}

		vevent := cal.AddEvent(eventUID(event, i))
		vevent.SetDtStampTime(now)
		vevent.SetSummary(event.Summary)

		if event.IsAllDay() {
			vevent.SetAllDayStartAt(event.Start.Time)
			if event.End != nil {
				vevent.SetAllDayEndAt(event.End.Time)
			} else {
				vevent.SetAllDayEndAt(event.Start.AddDate(0, 0, 1))
			}
		} else {
			vevent.SetStartAt(event.Start.Time)
			if event.End != nil {
				vevent.SetEndAt(event.End.Time)
			}
		}

		if event.IsBirthday && event.Person != "" {
			vevent.SetDescription(fmt.Sprintf("Birthday of %s", event.Person))
		}
	}

	return cal
}

// WriteMonth serializes the month's events as iCalendar text to w.
func WriteMonth(w io.Writer, year int, month time.Month, title string, events []models.CalendarEvent) error {
	cal := MonthCalendar(year, month, title, events)
	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("failed to serialize calendar: %w", err)
	}
	return nil
}

// eventUID derives a stable component UID. Backend-assigned IDs are reused;
// events without one get a positional UID scoped to the start date.
func eventUID(event *models.CalendarEvent, index int) string {
	if event.ID != "" {
		return fmt.Sprintf("%s@openzero", event.ID)
	}
	return fmt.Sprintf("%s-%d@openzero", event.Start.Format("20060102"), index)
}
