package view

import (
	"fmt"
	"time"

	"github.com/niklasbrandt/openzero/internal/models"
)

// DayCell is one day in the month grid.
type DayCell struct {
	Day        int
	IsToday    bool
	IsSelected bool
	HasEvent   bool
}

// MonthGrid is the pure 2-D layout of a calendar month: Leading empty cells
// (the weekday of day 1, Sunday = 0) followed by one cell per day.
type MonthGrid struct {
	Year    int
	Month   time.Month
	Leading int
	Days    []DayCell
}

// Weekdays are the column headers of the grid, Sunday first.
var Weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// BuildMonthGrid maps (year, month, today, events, selectedDay) to a grid.
// The mapping is deterministic: the same inputs always produce the same grid.
// HasEvent compares by local calendar date, not exact timestamp.
func BuildMonthGrid(year int, month time.Month, today time.Time, events []models.CalendarEvent, selectedDay int) MonthGrid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	// Day zero of the next month normalizes to this month's last day.
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local).Day()

	eventDays := make(map[int]bool)
	for _, e := range events {
		if e.InMonth(year, month) {
			eventDays[e.Start.Day()] = true
		}
	}

	grid := MonthGrid{
		Year:    year,
		Month:   month,
		Leading: int(first.Weekday()),
		Days:    make([]DayCell, 0, daysInMonth),
	}

	for day := 1; day <= daysInMonth; day++ {
		grid.Days = append(grid.Days, DayCell{
			Day:        day,
			IsToday:    today.Year() == year && today.Month() == month && today.Day() == day,
			IsSelected: day == selectedDay,
			HasEvent:   eventDays[day],
		})
	}

	return grid
}

// Title returns the grid heading, e.g. "March 2024".
func (g MonthGrid) Title() string {
	return fmt.Sprintf("%s %d", g.Month, g.Year)
}

// Weeks chunks the grid into rows of seven cells. Blank cells have Day 0.
func (g MonthGrid) Weeks() [][]DayCell {
	cells := make([]DayCell, g.Leading, g.Leading+len(g.Days))
	cells = append(cells, g.Days...)
	for len(cells)%7 != 0 {
		cells = append(cells, DayCell{})
	}

	weeks := make([][]DayCell, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		weeks = append(weeks, cells[i:i+7])
	}
	return weeks
}

// PrefillStart returns the "new event start" value for a selected day: that
// date at local midnight, formatted for a datetime input.
func PrefillStart(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local).Format("2006-01-02T15:04")
}
