package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/niklasbrandt/openzero/internal/models"
)

// RefreshActionCalendar is the action name sibling dashboard widgets listen
// for when the calendar's data has changed.
const RefreshActionCalendar = "calendar"

// Mutator issues local-event writes against the backend.
type Mutator interface {
	CreateLocalEvent(ctx context.Context, input models.LocalEventInput) error
	UpdateLocalSummary(ctx context.Context, id, summary string) error
	DeleteLocalEvent(ctx context.Context, id string) error
}

// Notifier broadcasts data-changed notifications to other dashboard
// components.
type Notifier interface {
	PublishRefresh(actions ...string)
}

// Snapshot is a read-only copy of the controller's view state.
type Snapshot struct {
	Year        int
	Month       time.Month
	SelectedDay int // 0 when no day is selected
	Events      []models.CalendarEvent
	LastErr     error
}

// Options configures optional controller collaborators.
type Options struct {
	// Mutator performs local-event writes. Required for Create/Update/Delete.
	Mutator Mutator
	// Notifier receives refresh-data broadcasts after successful mutations.
	Notifier Notifier
	// Confirm is consulted before a delete is issued. A nil Confirm means
	// deletes proceed unconditionally; a false return aborts silently.
	Confirm func(event models.CalendarEvent) bool
	// OnSnapshot intercepts winning fetch results instead of applying them
	// directly, so an event-loop front-end can route them through its own
	// message queue. The receiver must eventually call Apply.
	OnSnapshot func(FetchResult)
	Logger     *slog.Logger
}

// Controller owns the calendar view state: the displayed month and year, the
// selected day, and the event snapshot from the last successful fetch. All
// derived event lists are pure filters of that snapshot; mutations never
// patch it in place, they trigger a refetch instead.
type Controller struct {
	mu          sync.Mutex
	viewYear    int
	viewMonth   time.Month
	selectedDay int
	events      []models.CalendarEvent
	lastErr     error

	coord    *Coordinator
	mutator  Mutator
	notifier Notifier
	confirm  func(models.CalendarEvent) bool
	logger   *slog.Logger
}

// NewController creates a controller positioned on the month containing now.
func NewController(lister Lister, now time.Time, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		viewYear:  now.Year(),
		viewMonth: now.Month(),
		mutator:   opts.Mutator,
		notifier:  opts.Notifier,
		confirm:   opts.Confirm,
		logger:    logger,
	}

	apply := opts.OnSnapshot
	if apply == nil {
		apply = c.Apply
	}
	c.coord = NewCoordinator(lister, logger, apply)

	return c
}

// View returns a copy of the current state. The events slice is shared but
// treated as immutable by every consumer.
func (c *Controller) View() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Year:        c.viewYear,
		Month:       c.viewMonth,
		SelectedDay: c.selectedDay,
		Events:      c.events,
		LastErr:     c.lastErr,
	}
}

// Refresh fetches the snapshot for the currently displayed month.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	year, month := c.viewYear, c.viewMonth
	c.mu.Unlock()
	c.coord.Fetch(ctx, year, month)
}

// ChangeMonth moves the view by delta months, wrapping across year
// boundaries, clears the selected day, and fetches the new month.
func (c *Controller) ChangeMonth(ctx context.Context, delta int) {
	c.mu.Lock()
	shifted := time.Date(c.viewYear, c.viewMonth+time.Month(delta), 1, 0, 0, 0, 0, time.Local)
	c.viewYear = shifted.Year()
	c.viewMonth = shifted.Month()
	c.selectedDay = 0
	year, month := c.viewYear, c.viewMonth
	c.mu.Unlock()

	c.coord.Fetch(ctx, year, month)
}

// ResetToMonth repositions the view on the month containing now, clearing the
// selection, and fetches it. Used when the calendar is reopened.
func (c *Controller) ResetToMonth(ctx context.Context, now time.Time) {
	c.mu.Lock()
	c.viewYear = now.Year()
	c.viewMonth = now.Month()
	c.selectedDay = 0
	year, month := c.viewYear, c.viewMonth
	c.mu.Unlock()

	c.coord.Fetch(ctx, year, month)
}

// SelectDay sets the day filter. It operates on the already-loaded snapshot
// and never refetches. Passing 0 clears the selection.
func (c *Controller) SelectDay(day int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if day < 0 {
		day = 0
	}
	c.selectedDay = day
}

// SetEvents replaces the event snapshot wholesale and clears any previous
// fetch error.
func (c *Controller) SetEvents(events []models.CalendarEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = events
	c.lastErr = nil
}

// Apply folds a fetch result into the state. Failed fetches leave the
// previous snapshot untouched and only record the error for display. Results
// for a month other than the one currently displayed are discarded.
func (c *Controller) Apply(res FetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.Year != c.viewYear || res.Month != c.viewMonth {
		c.logger.Debug("Dropping fetch result for stale view",
			"got_year", res.Year, "got_month", int(res.Month),
			"view_year", c.viewYear, "view_month", int(c.viewMonth))
		return
	}

	if res.Err != nil {
		c.lastErr = res.Err
		return
	}

	c.events = res.Events
	c.lastErr = nil
}

// VisibleEvents returns the event subset for the current view: the selected
// day's events when a day is selected, the whole month's otherwise. The
// result is always a fresh filter of the snapshot, in fetch order.
func (c *Controller) VisibleEvents() []models.CalendarEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	visible := make([]models.CalendarEvent, 0, len(c.events))
	for _, e := range c.events {
		if c.selectedDay > 0 {
			if e.OccursOn(c.viewYear, c.viewMonth, c.selectedDay) {
				visible = append(visible, e)
			}
		} else if e.InMonth(c.viewYear, c.viewMonth) {
			visible = append(visible, e)
		}
	}
	return visible
}

// Cancel aborts any in-flight fetch. Used on view teardown; the snapshot is
// discarded with the controller, never persisted.
func (c *Controller) Cancel() {
	c.coord.Cancel()
}

// CreateLocal creates a local event, then refetches and broadcasts a
// refresh-data notification. The snapshot is never patched optimistically.
func (c *Controller) CreateLocal(ctx context.Context, input models.LocalEventInput) error {
	if c.mutator == nil {
		return fmt.Errorf("no backend client configured")
	}
	if err := c.mutator.CreateLocalEvent(ctx, input); err != nil {
		c.logger.Error("Failed to create local event", "summary", input.Summary, "error", err)
		return err
	}

	c.logger.Info("Created local event", "summary", input.Summary)
	c.afterMutation(ctx)
	return nil
}

// UpdateLocal updates a local event's summary, then refetches and broadcasts
// a refresh-data notification.
func (c *Controller) UpdateLocal(ctx context.Context, id, summary string) error {
	if c.mutator == nil {
		return fmt.Errorf("no backend client configured")
	}
	if err := c.mutator.UpdateLocalSummary(ctx, id, summary); err != nil {
		c.logger.Error("Failed to update local event", "id", id, "error", err)
		return err
	}

	c.logger.Info("Updated local event", "id", id)
	c.afterMutation(ctx)
	return nil
}

// DeleteLocal deletes a local event after consulting the configured
// confirmer. A denied confirmation aborts silently: no request is issued and
// the snapshot stays as it was. Non-editable events are rejected.
func (c *Controller) DeleteLocal(ctx context.Context, event models.CalendarEvent) error {
	if c.mutator == nil {
		return fmt.Errorf("no backend client configured")
	}
	if !event.Editable() {
		return fmt.Errorf("event %q is not editable", event.Summary)
	}
	if c.confirm != nil && !c.confirm(event) {
		c.logger.Debug("Delete not confirmed", "id", event.ID)
		return nil
	}

	if err := c.mutator.DeleteLocalEvent(ctx, event.ID); err != nil {
		c.logger.Error("Failed to delete local event", "id", event.ID, "error", err)
		return err
	}

	c.logger.Info("Deleted local event", "id", event.ID)
	c.afterMutation(ctx)
	return nil
}

// afterMutation refetches the current view and tells the rest of the
// dashboard that calendar data changed.
func (c *Controller) afterMutation(ctx context.Context) {
	c.Refresh(ctx)
	if c.notifier != nil {
		c.notifier.PublishRefresh(RefreshActionCalendar)
	}
}
