package player

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Session represents one speak() invocation: an ordered chunk sequence, a
// cooperative cancellation flag and an optional completion callback. At most
// one session renders audio at a time; starting a new one cancels the previous.
type Session struct {
	id        string
	cancelled atomic.Bool
	complete  atomic.Bool
	started   atomic.Bool
	ended     atomic.Bool

	onDone func(cancelled bool)
}

func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

func (s *Session) ID() string { return s.id }

// Cancelled reports whether the session's cancellation flag is set. Producers
// check it between synthesis batches; the renderer checks it between chunks.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// OnDone registers a callback fired once, off the render thread, when the
// session ends (drained or cancelled). Must be set before Play.
func (s *Session) OnDone(fn func(cancelled bool)) { s.onDone = fn }

func (s *Session) cancel() { s.cancelled.Store(true) }
