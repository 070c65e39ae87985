package grid

// EventType names a store notification. External surfaces (status bar,
// logging, websocket broadcast) subscribe to these instead of watching
// rendered output.
type EventType string

const (
	EventItemCreated      EventType = "item.created"
	EventItemUpdated      EventType = "item.updated"
	EventItemRemoved      EventType = "item.removed"
	EventItemMoved        EventType = "item.moved"
	EventNestAdded        EventType = "nest.added"
	EventNestRemoved      EventType = "nest.removed"
	EventDataUpdated      EventType = "data.updated"
	EventViewportChanged  EventType = "viewport.changed"
	EventStateReplaced    EventType = "state.replaced"
	EventProfileChanged   EventType = "profile.changed"
	EventAutoSaveFailed   EventType = "autosave.failed"
	EventAutoSaveDisabled EventType = "autosave.disabled"
)

// Event is a typed store notification.
type Event struct {
	Type   EventType
	ItemID string
	Detail string
}

// Subscribe registers a handler for all store events and returns an
// unsubscribe function. Handlers run synchronously on the mutating call.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Emit publishes an event to all subscribers. Collaborating managers (for
// example auto-save) publish their notifications through the store bus so
// there is a single event surface.
func (s *Store) Emit(e Event) {
	s.mu.RLock()
	handlers := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		handlers = append(handlers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}
