package core

import "sync"

// Event model. Events carry plain values so they can cross from the host
// thread to the render thread.
type Event interface{ isEvent() }

type EventCloseRequested struct{}

func (EventCloseRequested) isEvent() {}

// EventResize reports a display geometry change.
type EventResize struct{ Rotation, W, H int }

func (EventResize) isEvent() {}

type EventKey struct {
	Key  Key
	Down bool
	Mods Mod
}

func (EventKey) isEvent() {}

// EventTouch is a tap in window pixels.
type EventTouch struct{ X, Y float32 }

func (EventTouch) isEvent() {}

// EventSettings carries the user toggles.
type EventSettings struct {
	InstantPlacement   bool
	DepthVisualization bool
	DepthOcclusion     bool
}

func (EventSettings) isEvent() {}

// Key/mod enums (subset).
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
	KeyI // instant placement
	KeyV // depth visualization
	KeyO // depth occlusion
	KeyR // rotate display
)

type Mod int

const (
	ModNone  Mod = 0
	ModShift Mod = 1 << 0
	ModCtrl  Mod = 1 << 1
	ModAlt   Mod = 1 << 2
	ModSuper Mod = 1 << 3
)

// EventQueue hands events from any goroutine to the render thread, which
// drains it between frames.
type EventQueue struct {
	mu     sync.Mutex
	events []Event
}

func NewEventQueue() *EventQueue { return &EventQueue{} }

func (q *EventQueue) Push(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
}

// Drain returns the pending events in push order and empties the queue.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.events
	q.events = nil
	return evs
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
