package statemachine

import "sort"

// Event is a named token raised by actions and tested by transitions.
// Events compare by name, case-sensitive.
type Event struct {
	name string
}

func NewEvent(name string) Event {
	return Event{name: name}
}

func (e Event) Name() string {
	return e.name
}

func (e Event) String() string {
	return e.name
}

// Evaluate reports whether the event is present in the live event set.
func (e Event) Evaluate(events Events) bool {
	return events.Has(e)
}

type Events map[Event]struct{}

func NewEvents(names ...string) Events {
	events := make(Events, len(names))
	for _, name := range names {
		events.Add(NewEvent(name))
	}
	return events
}

func (e Events) Add(event Event) {
	e[event] = struct{}{}
}

// Emit adds the events with the given names.
func (e Events) Emit(names ...string) {
	for _, name := range names {
		e.Add(NewEvent(name))
	}
}

func (e Events) Has(event Event) bool {
	_, ok := e[event]
	return ok
}

func (e Events) Remove(event Event) {
	delete(e, event)
}

func (e Events) Clear() {
	clear(e)
}

func (e Events) Len() int {
	return len(e)
}

func (e Events) Names() []string {
	names := make([]string, 0, len(e))
	for event := range e {
		names = append(names, event.name)
	}
	sort.Strings(names)
	return names
}

func (e Events) Clone() Events {
	cp := make(Events, len(e))
	for event := range e {
		cp[event] = struct{}{}
	}
	return cp
}
