// Package voicemode wires playback lifecycle events to recognizer behavior.
// The mode table is the authoritative contract: getting it wrong either lets
// the assistant interrupt itself or leaves playback silently unstoppable.
package voicemode

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/metrics"
	"github.com/murmurkit/murmur/pkg/player"
)

// PlayerControl is the slice of the player the coordinator drives.
type PlayerControl interface {
	Stop() error
	State() player.State
	EnableFarEnd(on bool)
	FarEnd() <-chan audio.Chunk
}

// RecognizerControl is the slice of the recognizer the coordinator drives.
type RecognizerControl interface {
	PauseProcessing()
	ResumeProcessing()
	SetSuppressed(on bool)
	EnableAEC(on bool)
	FeedFarEnd(samples []float32)
}

const pendingNone = int32(-1)

// Coordinator applies the mode table on every playback lifecycle event. Mode
// changes are stored and take effect at the next lifecycle event, never
// mid-utterance.
type Coordinator struct {
	p   PlayerControl
	rec RecognizerControl

	mode    atomic.Int32
	pending atomic.Int32

	aecOn   atomic.Bool
	aecStop context.CancelFunc
	mu      sync.Mutex

	logger *slog.Logger
	obs    metrics.Observer
}

func NewCoordinator(p PlayerControl, rec RecognizerControl, logger *slog.Logger, obs metrics.Observer) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	c := &Coordinator{
		p:      p,
		rec:    rec,
		logger: logger.With(slog.String("component", "voicemode")),
		obs:    obs,
	}
	c.mode.Store(int32(ModeStop))
	c.pending.Store(pendingNone)
	return c
}

// Mode returns the currently applied mode.
func (c *Coordinator) Mode() Mode { return Mode(c.mode.Load()) }

// SetMode stages a mode change; it is applied at the next lifecycle event. An
// invalid mode is logged and replaced with ModeStop.
func (c *Coordinator) SetMode(m Mode) {
	if !m.valid() {
		c.logger.Warn("invalid_mode_requested",
			slog.Int("mode", int(m)),
			slog.String("fallback", ModeStop.String()))
		m = ModeStop
	}
	c.pending.Store(int32(m))
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventModeChange,
		Time: time.Now(),
		Tags: map[string]string{"mode": m.String(), "component": "voicemode"},
	})
	c.logger.Info("mode_change_staged", slog.String("mode", m.String()))
}

// HandleLifecycle is registered as a player lifecycle listener. It runs on the
// player's dispatcher goroutine.
func (c *Coordinator) HandleLifecycle(ev player.LifecycleEvent) {
	mode := c.applyPending()
	switch ev.Type {
	case player.EventStart:
		c.onPlaybackStart(mode)
	case player.EventEnd:
		c.onPlaybackEnd(mode)
	case player.EventPause, player.EventResume:
		// The mode table keys off start and end only; a paused session is
		// still the active session.
	}
}

// applyPending promotes a staged mode change, returning the effective mode.
func (c *Coordinator) applyPending() Mode {
	if p := c.pending.Swap(pendingNone); p != pendingNone {
		c.mode.Store(p)
		c.logger.Debug("mode_applied", slog.String("mode", Mode(p).String()))
	}
	return Mode(c.mode.Load())
}

func (c *Coordinator) onPlaybackStart(mode Mode) {
	switch mode {
	case ModeFull:
		// Keep listening; barge-in stays armed.
	case ModeWait:
		c.rec.PauseProcessing()
	case ModeStop, ModePushToTalk:
		c.rec.SetSuppressed(true)
	}
	c.logger.Debug("playback_start_applied", slog.String("mode", mode.String()))
}

func (c *Coordinator) onPlaybackEnd(mode Mode) {
	switch mode {
	case ModeFull:
		// Nothing suppressed; interrupt-on-speech already restored.
	case ModeWait:
		c.rec.ResumeProcessing()
	case ModeStop, ModePushToTalk:
		c.rec.SetSuppressed(false)
	}
	c.logger.Debug("playback_end_applied", slog.String("mode", mode.String()))
}

// NotifySpeech reports detected user speech. In Full mode while playback is
// active this is a barge-in and stops the player. Returns true when playback
// was stopped.
func (c *Coordinator) NotifySpeech() bool {
	if Mode(c.mode.Load()) != ModeFull {
		return false
	}
	if c.p.State() != player.StatePlaying {
		return false
	}
	c.logger.Info("barge_in")
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventBargeIn,
		Time: time.Now(),
		Tags: map[string]string{"component": "voicemode"},
	})
	if err := c.p.Stop(); err != nil {
		c.logger.Warn("barge_in_stop_failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// EnableAEC toggles the far-end feed: played chunks are pumped from the player
// tap into the recognizer's echo canceller.
func (c *Coordinator) EnableAEC(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on == c.aecOn.Load() {
		return
	}
	c.aecOn.Store(on)
	c.p.EnableFarEnd(on)
	c.rec.EnableAEC(on)
	if on {
		ctx, cancel := context.WithCancel(context.Background())
		c.aecStop = cancel
		go c.pumpFarEnd(ctx)
		c.logger.Info("aec_enabled")
		return
	}
	if c.aecStop != nil {
		c.aecStop()
		c.aecStop = nil
	}
	c.logger.Info("aec_disabled")
}

// Close stops the far-end pump.
func (c *Coordinator) Close() {
	c.EnableAEC(false)
}

func (c *Coordinator) pumpFarEnd(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk := <-c.p.FarEnd():
			c.rec.FeedFarEnd(chunk.RawSamples())
		}
	}
}
