package bus

import (
	"log/slog"
	"sync"
)

// Topics mirror the eventing contract of the original dashboard: broadcast,
// not targeted, with any number of listeners free to react.
const (
	// TopicOpenCalendar asks the calendar view to show itself.
	TopicOpenCalendar = "open-calendar"
	// TopicRefreshData tells components that backend data changed; the
	// payload names which data via Refresh.Actions.
	TopicRefreshData = "refresh-data"
)

// Refresh is the payload of a refresh-data broadcast.
type Refresh struct {
	Actions []string `json:"actions"`
}

// Wants reports whether the broadcast names the given action.
func (r Refresh) Wants(action string) bool {
	for _, a := range r.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Handler receives a published payload.
type Handler func(payload any)

// Bus is an explicit in-process publish/subscribe broadcaster. It replaces
// the window-level CustomEvent fan-out of the original dashboard with direct
// subscriptions, keeping component coupling visible.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]Handler
	logger *slog.Logger
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]map[int]Handler),
		logger: logger,
	}
}

// Subscribe registers a handler for a topic and returns a cancel function
// that removes the subscription.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish delivers the payload to every subscriber of the topic, in the
// calling goroutine. Handlers may subscribe or unsubscribe while handling.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	b.logger.Debug("Broadcasting", "topic", topic, "subscriber_count", len(handlers))

	for _, h := range handlers {
		h(payload)
	}
}

// PublishRefresh broadcasts a refresh-data notification naming the changed
// data sets.
func (b *Bus) PublishRefresh(actions ...string) {
	b.Publish(TopicRefreshData, Refresh{Actions: actions})
}

// PublishOpenCalendar asks the calendar view to open.
func (b *Bus) PublishOpenCalendar() {
	b.Publish(TopicOpenCalendar, nil)
}
