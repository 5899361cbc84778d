package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/niklasbrandt/openzero/internal/models"
)

// countingLister answers immediately and counts calls.
type countingLister struct {
	mu     sync.Mutex
	calls  int
	events []models.CalendarEvent
	called chan struct{}
}

func (l *countingLister) ListMonth(ctx context.Context, year int, month time.Month) ([]models.CalendarEvent, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.called != nil {
		select {
		case l.called <- struct{}{}:
		default:
		}
	}
	return l.events, nil
}

func (l *countingLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// recordingMutator records which writes were issued.
type recordingMutator struct {
	mu      sync.Mutex
	creates []models.LocalEventInput
	updates map[string]string
	deletes []string
	err     error
}

func newRecordingMutator() *recordingMutator {
	return &recordingMutator{updates: make(map[string]string)}
}

func (m *recordingMutator) CreateLocalEvent(ctx context.Context, input models.LocalEventInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.creates = append(m.creates, input)
	return nil
}

func (m *recordingMutator) UpdateLocalSummary(ctx context.Context, id, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.updates[id] = summary
	return nil
}

func (m *recordingMutator) DeleteLocalEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deletes = append(m.deletes, id)
	return nil
}

// recordingNotifier collects refresh broadcasts.
type recordingNotifier struct {
	mu      sync.Mutex
	actions [][]string
}

func (n *recordingNotifier) PublishRefresh(actions ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, actions)
}

func (n *recordingNotifier) published() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.actions
}

func marchNow() time.Time {
	return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.Local)
}

func TestChangeMonthTwelveTimesRoundTrips(t *testing.T) {
	ctrl := NewController(&countingLister{}, marchNow(), Options{})

	for i := 0; i < 12; i++ {
		ctrl.ChangeMonth(context.Background(), 1)
	}

	view := ctrl.View()
	if view.Year != 2025 || view.Month != time.March {
		t.Errorf("Expected view to land on 2025-03 after twelve +1 steps, got %d-%02d", view.Year, int(view.Month))
	}

	for i := 0; i < 12; i++ {
		ctrl.ChangeMonth(context.Background(), -1)
	}

	view = ctrl.View()
	if view.Year != 2024 || view.Month != time.March {
		t.Errorf("Expected view to return to 2024-03, got %d-%02d", view.Year, int(view.Month))
	}
}

func TestChangeMonthWrapsYearBoundaries(t *testing.T) {
	ctrl := NewController(&countingLister{}, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.Local), Options{})

	ctrl.ChangeMonth(context.Background(), 1)
	view := ctrl.View()
	if view.Year != 2025 || view.Month != time.January {
		t.Errorf("Expected December +1 to wrap to 2025-01, got %d-%02d", view.Year, int(view.Month))
	}

	ctrl.ChangeMonth(context.Background(), -1)
	view = ctrl.View()
	if view.Year != 2024 || view.Month != time.December {
		t.Errorf("Expected January -1 to wrap back to 2024-12, got %d-%02d", view.Year, int(view.Month))
	}
}

func TestChangeMonthClearsSelection(t *testing.T) {
	ctrl := NewController(&countingLister{}, marchNow(), Options{})

	ctrl.SelectDay(5)
	if ctrl.View().SelectedDay != 5 {
		t.Fatal("Expected day 5 to be selected")
	}

	ctrl.ChangeMonth(context.Background(), 1)
	if ctrl.View().SelectedDay != 0 {
		t.Error("Expected month change to clear the selected day")
	}
}

func TestSelectDayDoesNotRefetch(t *testing.T) {
	lister := &countingLister{}
	ctrl := NewController(lister, marchNow(), Options{})

	ctrl.SetEvents([]models.CalendarEvent{
		{Summary: "Tax Day", Start: models.NewEventTime(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local))},
	})

	ctrl.SelectDay(5)
	ctrl.SelectDay(0)
	ctrl.SelectDay(12)

	if got := lister.callCount(); got != 0 {
		t.Errorf("Expected day selection to issue no fetches, got %d", got)
	}
}

func TestVisibleEventsFiltersSnapshot(t *testing.T) {
	ctrl := NewController(&countingLister{}, marchNow(), Options{})

	inMonth := models.CalendarEvent{
		Summary: "Tax Day",
		Start:   models.NewEventTime(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local)),
	}
	otherDay := models.CalendarEvent{
		Summary: "Standup",
		Start:   models.NewEventTime(time.Date(2024, time.March, 7, 9, 30, 0, 0, time.Local)),
	}
	otherMonth := models.CalendarEvent{
		Summary: "April planning",
		Start:   models.NewEventTime(time.Date(2024, time.April, 2, 10, 0, 0, 0, time.Local)),
	}
	ctrl.SetEvents([]models.CalendarEvent{inMonth, otherDay, otherMonth})

	visible := ctrl.VisibleEvents()
	if len(visible) != 2 {
		t.Fatalf("Expected 2 visible events for the month view, got %d", len(visible))
	}

	ctrl.SelectDay(5)
	visible = ctrl.VisibleEvents()
	if len(visible) != 1 || visible[0].Summary != "Tax Day" {
		t.Errorf("Expected only Tax Day for March 5, got %+v", visible)
	}
}

func TestApplyErrorKeepsPriorSnapshot(t *testing.T) {
	ctrl := NewController(&countingLister{}, marchNow(), Options{})

	events := []models.CalendarEvent{
		{Summary: "Tax Day", Start: models.NewEventTime(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local))},
	}
	ctrl.SetEvents(events)

	ctrl.Apply(FetchResult{Year: 2024, Month: time.March, Err: errors.New("backend unavailable")})

	view := ctrl.View()
	if len(view.Events) != 1 {
		t.Error("Expected a failed fetch to leave the prior snapshot untouched")
	}
	if view.LastErr == nil {
		t.Error("Expected the fetch error to be recorded for display")
	}

	// A later successful fetch clears the error.
	ctrl.Apply(FetchResult{Year: 2024, Month: time.March, Events: nil})
	if ctrl.View().LastErr != nil {
		t.Error("Expected a successful fetch to clear the recorded error")
	}
}

func TestApplyDiscardsResultForStaleView(t *testing.T) {
	ctrl := NewController(&countingLister{}, marchNow(), Options{})

	ctrl.Apply(FetchResult{Year: 2024, Month: time.April, Events: []models.CalendarEvent{{Summary: "April planning"}}})

	if len(ctrl.View().Events) != 0 {
		t.Error("Expected a result for a different month to be discarded")
	}
}

func TestCreateLocalRefetchesAndNotifies(t *testing.T) {
	lister := &countingLister{called: make(chan struct{}, 1)}
	mutator := newRecordingMutator()
	notifier := &recordingNotifier{}

	ctrl := NewController(lister, marchNow(), Options{
		Mutator:  mutator,
		Notifier: notifier,
	})

	input := models.LocalEventInput{
		Summary:   "Dentist",
		StartTime: models.NewEventTime(time.Date(2024, time.March, 20, 0, 0, 0, 0, time.Local)),
		IsAllDay:  true,
	}

	if err := ctrl.CreateLocal(context.Background(), input); err != nil {
		t.Fatalf("CreateLocal failed: %v", err)
	}

	if len(mutator.creates) != 1 {
		t.Fatalf("Expected one create call, got %d", len(mutator.creates))
	}

	select {
	case <-lister.called:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a refetch after a successful create")
	}

	published := notifier.published()
	if len(published) != 1 {
		t.Fatalf("Expected one refresh broadcast, got %d", len(published))
	}
	found := false
	for _, action := range published[0] {
		if action == RefreshActionCalendar {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected refresh actions to include %q, got %v", RefreshActionCalendar, published[0])
	}
}

func TestDeleteDeniedConfirmationIssuesNoRequest(t *testing.T) {
	mutator := newRecordingMutator()
	notifier := &recordingNotifier{}

	ctrl := NewController(&countingLister{}, marchNow(), Options{
		Mutator:  mutator,
		Notifier: notifier,
		Confirm:  func(models.CalendarEvent) bool { return false },
	})

	events := []models.CalendarEvent{
		{ID: "local_7", Summary: "Dentist", IsLocal: true,
			Start: models.NewEventTime(time.Date(2024, time.March, 20, 0, 0, 0, 0, time.Local))},
	}
	ctrl.SetEvents(events)

	if err := ctrl.DeleteLocal(context.Background(), events[0]); err != nil {
		t.Fatalf("Expected a denied confirmation to abort silently, got: %v", err)
	}

	if len(mutator.deletes) != 0 {
		t.Error("Expected no DELETE request after a denied confirmation")
	}
	if len(notifier.published()) != 0 {
		t.Error("Expected no refresh broadcast after a denied confirmation")
	}
	if len(ctrl.View().Events) != 1 {
		t.Error("Expected the event list to be unchanged")
	}
}

func TestDeleteConfirmedIssuesRequest(t *testing.T) {
	lister := &countingLister{called: make(chan struct{}, 1)}
	mutator := newRecordingMutator()
	notifier := &recordingNotifier{}

	ctrl := NewController(lister, marchNow(), Options{
		Mutator:  mutator,
		Notifier: notifier,
		Confirm:  func(models.CalendarEvent) bool { return true },
	})

	event := models.CalendarEvent{ID: "local_7", Summary: "Dentist", IsLocal: true}
	if err := ctrl.DeleteLocal(context.Background(), event); err != nil {
		t.Fatalf("DeleteLocal failed: %v", err)
	}

	if len(mutator.deletes) != 1 || mutator.deletes[0] != "local_7" {
		t.Errorf("Expected a delete for local_7, got %v", mutator.deletes)
	}

	select {
	case <-lister.called:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a refetch after a successful delete")
	}
}

func TestDeleteRejectsNonEditableEvents(t *testing.T) {
	mutator := newRecordingMutator()
	ctrl := NewController(&countingLister{}, marchNow(), Options{Mutator: mutator})

	birthday := models.CalendarEvent{ID: "b1", Summary: "Birthday", IsLocal: true, IsBirthday: true}
	if err := ctrl.DeleteLocal(context.Background(), birthday); err == nil {
		t.Error("Expected deleting a birthday event to be rejected")
	}

	synced := models.CalendarEvent{ID: "g1", Summary: "Synced"}
	if err := ctrl.DeleteLocal(context.Background(), synced); err == nil {
		t.Error("Expected deleting a synced event to be rejected")
	}

	if len(mutator.deletes) != 0 {
		t.Error("Expected no DELETE requests for non-editable events")
	}
}

func TestMutationFailurePropagatesWithoutNotification(t *testing.T) {
	mutator := newRecordingMutator()
	mutator.err = errors.New("backend unavailable")
	notifier := &recordingNotifier{}

	ctrl := NewController(&countingLister{}, marchNow(), Options{
		Mutator:  mutator,
		Notifier: notifier,
	})

	if err := ctrl.UpdateLocal(context.Background(), "local_7", "New title"); err == nil {
		t.Error("Expected the mutation error to propagate")
	}
	if len(notifier.published()) != 0 {
		t.Error("Expected no refresh broadcast after a failed mutation")
	}
}

func TestResetToMonthRepositionsView(t *testing.T) {
	ctrl := NewController(&countingLister{}, marchNow(), Options{})

	ctrl.ChangeMonth(context.Background(), 3)
	ctrl.SelectDay(10)

	ctrl.ResetToMonth(context.Background(), marchNow())
	view := ctrl.View()
	if view.Year != 2024 || view.Month != time.March {
		t.Errorf("Expected reset to 2024-03, got %d-%02d", view.Year, int(view.Month))
	}
	if view.SelectedDay != 0 {
		t.Error("Expected reset to clear the selected day")
	}
}
