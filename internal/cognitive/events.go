package cognitive

import "sync"

// EventKind names a point in the life of a generation.
type EventKind string

const (
	EventRequest  EventKind = "request"
	EventResponse EventKind = "response"
	EventRetry    EventKind = "retry"
	EventFallback EventKind = "fallback"
	EventError    EventKind = "error"
	EventAborted  EventKind = "aborted"
)

// EventKinds lists every event kind.
var EventKinds = []EventKind{EventRequest, EventResponse, EventRetry, EventFallback, EventError, EventAborted}

// Event is delivered to subscribers. Response is set for EventResponse,
// Err for the failure kinds.
type Event struct {
	Kind     EventKind
	Request  *Request
	Response *Response
	Err      error
}

// Handler receives events. Handlers run synchronously on the generating
// goroutine and must not block.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// events keeps an ordered handler list per kind.
type events struct {
	mu     sync.Mutex
	nextID int
	subs   map[EventKind][]subscription
}

func newEvents() *events {
	return &events{subs: make(map[EventKind][]subscription)}
}

func (e *events) subscribe(kind EventKind, fn Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.subs[kind] = append(e.subs[kind], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			subs := e.subs[kind]
			for i, s := range subs {
				if s.id == id {
					e.subs[kind] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

func (e *events) emit(ev Event) {
	e.mu.Lock()
	subs := append([]subscription(nil), e.subs[ev.Kind]...)
	e.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
