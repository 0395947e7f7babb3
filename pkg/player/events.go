package player

import "time"

// EventType identifies a playback lifecycle transition.
type EventType int

const (
	EventStart EventType = iota
	EventPause
	EventResume
	EventEnd
)

func (e EventType) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// LifecycleEvent is delivered to listeners on a dedicated dispatcher
// goroutine, never from the render thread.
type LifecycleEvent struct {
	Type      EventType
	SessionID string
	Time      time.Time
}

// Listener observes playback lifecycle events.
type Listener func(LifecycleEvent)

// internal wire format between the render/control threads and the dispatcher.
type dispatchItem struct {
	event    LifecycleEvent
	session  *Session
	underrun bool
}
