package player

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/errorsx"
	"github.com/murmurkit/murmur/pkg/metrics"
)

// State is the coarse playback state. The render callback reads it on every
// invocation via an atomic load and must never block on that read.
type State int32

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Renderer is the hard-real-time contract a device driver pulls on. Render
// fills dst completely each period: queued samples while playing, silence while
// paused or starved. It never blocks, allocates, or performs I/O.
type Renderer interface {
	Render(dst []float32)
}

// Output is an audio output device. Start begins periodically pulling the
// renderer at the device cadence; implementations report an open failure
// immediately so Play can fail fast without touching player state.
type Output interface {
	Start(r Renderer) error
	Close() error
}

type Config struct {
	SampleRate    int
	QueueCapacity int
	Logger        *slog.Logger
	Observer      metrics.Observer
}

// StreamingPlayer owns the output stream and renders queued chunks on the
// device callback. Control operations (Play/Pause/Resume/Stop) run under a
// single mutex; the render path uses atomics and a non-blocking queue pop.
type StreamingPlayer struct {
	mu         sync.Mutex
	out        Output
	outStarted bool
	closed     bool
	listeners  []Listener

	queue *audio.ChunkQueue
	state atomic.Int32
	// active is the session the renderer serves; nil pointer means none.
	active atomic.Pointer[Session]

	// Render-thread-local cursor into the chunk being consumed. Only the
	// render callback touches these. curSess guards against a cursor left
	// over from a cancelled session bleeding into its successor.
	cur     []float32
	curOff  int
	curSess *Session

	events    chan dispatchItem
	dispDone  chan struct{}
	dropped   atomic.Int64
	lastUnder atomic.Int64

	farEndOn atomic.Bool
	farEnd   chan audio.Chunk

	rate   int
	logger *slog.Logger
	obs    metrics.Observer
}

func New(cfg Config, out Output) *StreamingPlayer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	p := &StreamingPlayer{
		out:      out,
		queue:    audio.NewChunkQueue(cfg.QueueCapacity),
		events:   make(chan dispatchItem, 64),
		dispDone: make(chan struct{}),
		farEnd:   make(chan audio.Chunk, 32),
		rate:     cfg.SampleRate,
		logger:   cfg.Logger.With(slog.String("component", "player")),
		obs:      cfg.Observer,
	}
	p.state.Store(int32(StateIdle))
	go p.dispatch()
	return p
}

func (p *StreamingPlayer) State() State { return State(p.state.Load()) }

func (p *StreamingPlayer) SampleRate() int { return p.rate }

// AddListener registers a lifecycle listener. Listeners run on the dispatcher
// goroutine in registration order.
func (p *StreamingPlayer) AddListener(l Listener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Play begins a new session, atomically cancelling any prior one: the old
// session's cancellation flag is set, its queued chunks are cleared, and its
// end event fires before the new session's start event. A device-open failure
// returns ErrDeviceUnavailable and leaves state unchanged.
func (p *StreamingPlayer) Play(sess *Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}
	if !p.outStarted {
		if err := p.out.Start(p); err != nil {
			p.logger.Error("device_open_failed", slog.String("error", err.Error()))
			return errorsx.Wrap(ErrDeviceUnavailable, errorsx.ReasonDeviceUnavailable)
		}
		p.outStarted = true
	}
	if prev := p.active.Load(); prev != nil {
		p.cancelLocked(prev)
	}
	p.active.Store(sess)
	p.state.Store(int32(StatePlaying))
	p.logger.Debug("session_started", slog.String("session_id", sess.ID()))
	return nil
}

// Enqueue appends a chunk to the active session's queue, blocking for queue
// space (producer-side backpressure). A stale session id returns
// ErrSessionMismatch and the chunk is dropped; producers stop on it.
func (p *StreamingPlayer) Enqueue(ctx context.Context, sessionID string, c audio.Chunk) error {
	sess := p.active.Load()
	if sess == nil || sess.ID() != sessionID || sess.Cancelled() {
		p.record(metrics.EventChunkDropped, sessionID, nil)
		return errorsx.Wrap(ErrSessionMismatch, errorsx.ReasonSessionMismatch)
	}
	return p.queue.Push(ctx, c)
}

// Finish marks the session's chunk sequence complete. Once the queue drains
// the renderer fires the end event and the player returns to Idle.
func (p *StreamingPlayer) Finish(sessionID string) {
	if sess := p.active.Load(); sess != nil && sess.ID() == sessionID {
		sess.complete.Store(true)
	}
}

// Pause flips to Paused; the render callback emits silence from its next
// invocation, bounding pause latency to one callback period.
func (p *StreamingPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if State(p.state.Load()) != StatePlaying {
		return ErrInvalidState
	}
	p.state.Store(int32(StatePaused))
	p.emit(EventPause, p.active.Load())
	return nil
}

// Resume continues from the exact next unplayed sample.
func (p *StreamingPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if State(p.state.Load()) != StatePaused {
		return ErrInvalidState
	}
	p.state.Store(int32(StatePlaying))
	p.emit(EventResume, p.active.Load())
	return nil
}

// Stop cancels the active session, clears the queue, transitions to Idle and
// fires the end event.
func (p *StreamingPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}
	if sess := p.active.Load(); sess != nil {
		p.cancelLocked(sess)
		p.active.Store(nil)
	}
	p.state.Store(int32(StateIdle))
	return nil
}

// Close stops playback and releases the device. The player cannot be reused.
func (p *StreamingPlayer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	if sess := p.active.Load(); sess != nil {
		p.cancelLocked(sess)
		p.active.Store(nil)
	}
	p.state.Store(int32(StateIdle))
	p.closed = true
	started := p.outStarted
	p.mu.Unlock()

	var err error
	if started {
		err = p.out.Close()
	}
	p.queue.Close()
	close(p.events)
	<-p.dispDone
	return err
}

// cancelLocked sets the cancellation flag, drops queued chunks and fires the
// end event exactly once. Caller holds p.mu.
func (p *StreamingPlayer) cancelLocked(sess *Session) {
	sess.cancel()
	if n := p.queue.Drain(); n > 0 {
		p.record(metrics.EventPlaybackCancel, sess.ID(), map[string]any{"chunks_discarded": n})
	}
	if sess.ended.CompareAndSwap(false, true) {
		p.emit(EventEnd, sess)
	}
}

// EnableFarEnd toggles the AEC far-end tap: while enabled, every chunk the
// renderer picks up is also offered (non-blocking) to the far-end channel.
func (p *StreamingPlayer) EnableFarEnd(on bool) { p.farEndOn.Store(on) }

// FarEnd exposes recently rendered chunks for echo cancellation.
func (p *StreamingPlayer) FarEnd() <-chan audio.Chunk { return p.farEnd }

// Render fills dst with the next unplayed samples. Hard-real-time: no locks,
// no allocation, no I/O. Paused or idle output is silence; starvation
// mid-session substitutes silence and keeps the session alive.
func (p *StreamingPlayer) Render(dst []float32) {
	defer func() {
		// The render boundary must never propagate a panic into the driver.
		_ = recover()
	}()

	if State(p.state.Load()) != StatePlaying {
		audio.Silence(dst)
		return
	}
	sess := p.active.Load()
	if sess == nil {
		audio.Silence(dst)
		return
	}

	if p.curSess != sess {
		p.cur = nil
		p.curSess = sess
	}

	filled := 0
	for filled < len(dst) {
		if sess.Cancelled() {
			p.cur = nil
			break
		}
		if p.cur == nil || p.curOff >= len(p.cur) {
			c, ok := p.queue.TryPop()
			if !ok {
				p.cur = nil
				break
			}
			if c.SessionID() != sess.ID() {
				// Stale chunk from a cancelled producer.
				continue
			}
			p.cur = c.RawSamples()
			p.curOff = 0
			if p.farEndOn.Load() {
				select {
				case p.farEnd <- c:
				default:
				}
			}
		}
		n := copy(dst[filled:], p.cur[p.curOff:])
		filled += n
		p.curOff += n
	}

	if filled > 0 && sess.started.CompareAndSwap(false, true) {
		p.send(dispatchItem{event: LifecycleEvent{Type: EventStart, SessionID: sess.ID(), Time: time.Now()}, session: sess})
	}
	if filled < len(dst) {
		audio.Silence(dst[filled:])
		if sess.started.Load() && !sess.complete.Load() && !sess.Cancelled() {
			p.noteUnderrun(sess)
		}
	}
	if p.cur == nil && sess.complete.Load() && sess.started.Load() && p.queue.Len() == 0 {
		if sess.ended.CompareAndSwap(false, true) {
			p.state.Store(int32(StateIdle))
			p.active.CompareAndSwap(sess, nil)
			p.send(dispatchItem{event: LifecycleEvent{Type: EventEnd, SessionID: sess.ID(), Time: time.Now()}, session: sess})
		}
	}
}

// noteUnderrun reports starvation at most once per second; the renderer
// itself only substitutes silence and continues.
func (p *StreamingPlayer) noteUnderrun(sess *Session) {
	now := time.Now().UnixNano()
	last := p.lastUnder.Load()
	if now-last < int64(time.Second) {
		return
	}
	if p.lastUnder.CompareAndSwap(last, now) {
		p.send(dispatchItem{event: LifecycleEvent{SessionID: sess.ID(), Time: time.Now()}, session: sess, underrun: true})
	}
}

// emit queues a lifecycle event from the control plane. Caller holds p.mu.
func (p *StreamingPlayer) emit(t EventType, sess *Session) {
	id := ""
	if sess != nil {
		id = sess.ID()
	}
	p.send(dispatchItem{event: LifecycleEvent{Type: t, SessionID: id, Time: time.Now()}, session: sess})
}

func (p *StreamingPlayer) send(it dispatchItem) {
	select {
	case p.events <- it:
	default:
		p.dropped.Add(1)
	}
}

// dispatch delivers lifecycle events to listeners off the render thread.
func (p *StreamingPlayer) dispatch() {
	defer close(p.dispDone)
	for it := range p.events {
		if it.underrun {
			p.logger.Warn("playback_underrun", slog.String("session_id", it.event.SessionID))
			p.record(metrics.EventUnderrun, it.event.SessionID, nil)
			continue
		}
		switch it.event.Type {
		case EventStart:
			p.record(metrics.EventPlaybackStart, it.event.SessionID, nil)
		case EventPause:
			p.record(metrics.EventPlaybackPause, it.event.SessionID, nil)
		case EventResume:
			p.record(metrics.EventPlaybackResume, it.event.SessionID, nil)
		case EventEnd:
			p.record(metrics.EventPlaybackEnd, it.event.SessionID, nil)
		}
		p.mu.Lock()
		ls := make([]Listener, len(p.listeners))
		copy(ls, p.listeners)
		p.mu.Unlock()
		for _, l := range ls {
			l(it.event)
		}
		if it.event.Type == EventEnd && it.session != nil && it.session.onDone != nil {
			it.session.onDone(it.session.Cancelled())
		}
	}
}

func (p *StreamingPlayer) record(name, sessionID string, fields map[string]any) {
	p.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Tags:   map[string]string{"session_id": sessionID, "component": "player"},
		Fields: fields,
	})
}

// DroppedEvents reports lifecycle events discarded because the dispatcher
// queue was full.
func (p *StreamingPlayer) DroppedEvents() int64 { return p.dropped.Load() }
