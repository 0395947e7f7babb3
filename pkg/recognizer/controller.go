// Package recognizer owns microphone capture, VAD-gated segment assembly and
// transcription dispatch. The capture loop runs on its own goroutine at the
// device frame cadence; transcription happens on per-segment workers so a slow
// or failing engine never stalls capture.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/errorsx"
	"github.com/murmurkit/murmur/pkg/metrics"
	"github.com/murmurkit/murmur/pkg/redact"
)

// State is the controller's externally visible mode.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateListeningPausedForPlayback
	StateSuppressed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateListeningPausedForPlayback:
		return "listening_paused"
	case StateSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

var (
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrAlreadyListening  = errors.New("recognizer already listening")
	ErrNotListening      = errors.New("recognizer not listening")
)

type Config struct {
	SampleRate int
	// FrameDuration is the expected capture frame cadence.
	FrameDuration time.Duration
	// SilenceDuration of continuous non-speech closes the current segment.
	SilenceDuration time.Duration
	// MaxSegmentDuration force-closes a segment regardless of VAD state.
	MaxSegmentDuration time.Duration
	// TranscribeTimeout bounds one engine call.
	TranscribeTimeout time.Duration
	Logger            *slog.Logger
	Observer          metrics.Observer
	// OnError receives per-segment failures. The capture loop never stops on
	// a single segment's failure.
	OnError func(error)
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = audio.DefaultFrameDuration
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = 500 * time.Millisecond
	}
	if c.MaxSegmentDuration <= 0 {
		c.MaxSegmentDuration = 15 * time.Second
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Observer == nil {
		c.Observer = metrics.NoopObserver{}
	}
}

// Controller runs the capture pipeline. Pause and suppression are atomic flags
// read once per frame, so both take effect within one frame period.
type Controller struct {
	cfg    Config
	source CaptureSource
	vad    VAD
	engine Transcriber

	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	onTranscript func(Transcript)
	sink         func(string)
	ec           EchoCanceller

	paused     atomic.Bool
	suppressed atomic.Bool
	aecOn      atomic.Bool

	farEnd chan []float32
	done   chan struct{}
	wg     sync.WaitGroup

	logger *slog.Logger
	obs    metrics.Observer
}

func NewController(cfg Config, source CaptureSource, vad VAD, engine Transcriber) *Controller {
	cfg.applyDefaults()
	if vad == nil {
		vad = NewEnergyVAD(0, 0)
	}
	return &Controller{
		cfg:    cfg,
		source: source,
		vad:    vad,
		engine: engine,
		farEnd: make(chan []float32, 32),
		logger: cfg.Logger.With(slog.String("component", "recognizer")),
		obs:    cfg.Observer,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return StateIdle
	}
	if c.paused.Load() {
		return StateListeningPausedForPlayback
	}
	if c.suppressed.Load() {
		return StateSuppressed
	}
	return StateListening
}

// SetSuppressedSink routes transcripts assembled while suppressed. Normally
// this is the stop-phrase detector's feed.
func (c *Controller) SetSuppressedSink(fn func(string)) {
	c.mu.Lock()
	c.sink = fn
	c.mu.Unlock()
}

// SetEchoCanceller installs the AEC hook. EnableAEC toggles whether it runs.
func (c *Controller) SetEchoCanceller(ec EchoCanceller) {
	c.mu.Lock()
	c.ec = ec
	c.mu.Unlock()
}

// EnableAEC toggles far-end cancellation before VAD classification. A no-op
// when no canceller is installed.
func (c *Controller) EnableAEC(on bool) { c.aecOn.Store(on) }

// Start opens the capture device and begins the frame loop. A device-open
// failure returns ErrDeviceUnavailable and leaves controller state unchanged.
func (c *Controller) Start(ctx context.Context, onTranscript func(Transcript)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyListening
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)

	frames, err := c.source.Start(runCtx)
	if err != nil {
		cancel()
		c.logger.Error("capture_start_failed", slog.String("error", err.Error()))
		return errorsx.Wrap(fmt.Errorf("%w: %v", ErrDeviceUnavailable, err), errorsx.ReasonCaptureStart)
	}

	c.running = true
	c.cancel = cancel
	c.onTranscript = onTranscript
	c.done = make(chan struct{})
	c.vad.Reset()

	go c.loop(runCtx, frames)
	c.logger.Info("capture_started",
		slog.Int("sample_rate", c.cfg.SampleRate),
		slog.Duration("frame", c.cfg.FrameDuration))
	return nil
}

// Stop tears down capture and waits for in-flight segment workers.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotListening
	}
	c.running = false
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	err := c.source.Stop()
	<-done
	c.wg.Wait()
	c.paused.Store(false)
	c.suppressed.Store(false)
	c.logger.Info("capture_stopped")
	return err
}

// PauseProcessing discards frames without closing the device, so resuming is
// bounded by one frame period. A partial segment in progress is dropped.
func (c *Controller) PauseProcessing() { c.paused.Store(true) }

func (c *Controller) ResumeProcessing() { c.paused.Store(false) }

// SetSuppressed routes assembled transcripts to the suppressed sink instead of
// the transcript callback. Frames keep flowing; only delivery changes.
func (c *Controller) SetSuppressed(on bool) { c.suppressed.Store(on) }

// FeedFarEnd supplies recently played audio for echo cancellation. Non-blocking;
// a no-op when AEC is disabled.
func (c *Controller) FeedFarEnd(samples []float32) {
	if !c.aecOn.Load() {
		return
	}
	select {
	case c.farEnd <- samples:
	default:
	}
}

func (c *Controller) loop(ctx context.Context, frames <-chan []float32) {
	defer close(c.done)

	silenceLimit := int(c.cfg.SilenceDuration / c.cfg.FrameDuration)
	if silenceLimit < 1 {
		silenceLimit = 1
	}
	maxSamples := int(time.Duration(c.cfg.SampleRate) * c.cfg.MaxSegmentDuration / time.Second)

	var (
		segment    []float32
		segStart   time.Time
		silenceRun int
	)

	closeSegment := func() {
		if len(segment) == 0 {
			return
		}
		samples := make([]float32, len(segment))
		copy(samples, segment)
		segment = segment[:0]
		silenceRun = 0
		c.dispatch(ctx, samples, segStart)
	}
	dropSegment := func() {
		segment = segment[:0]
		silenceRun = 0
		c.vad.Reset()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if c.paused.Load() {
				if len(segment) > 0 {
					dropSegment()
				}
				continue
			}
			frame = c.cancelEcho(frame)

			if c.vad.Classify(frame) {
				if len(segment) == 0 {
					segStart = time.Now()
				}
				segment = append(segment, frame...)
				silenceRun = 0
				if len(segment) >= maxSamples {
					closeSegment()
				}
				continue
			}
			if len(segment) > 0 {
				silenceRun++
				if silenceRun >= silenceLimit {
					closeSegment()
				}
			}
		}
	}
}

func (c *Controller) cancelEcho(frame []float32) []float32 {
	if !c.aecOn.Load() {
		return frame
	}
	c.mu.Lock()
	ec := c.ec
	c.mu.Unlock()
	if ec == nil {
		return frame
	}
	select {
	case far := <-c.farEnd:
		return ec.Cancel(frame, far)
	default:
		return frame
	}
}

// dispatch hands one closed segment to the engine on a worker goroutine. A
// panicking or failing engine affects only its own segment.
func (c *Controller) dispatch(ctx context.Context, samples []float32, start time.Time) {
	segID := uuid.NewString()
	end := time.Now()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.reportError(segID, errorsx.Wrap(fmt.Errorf("transcriber panic: %v", r), errorsx.ReasonSegmentTranscribe))
			}
		}()

		tctx, tcancel := context.WithTimeout(ctx, c.cfg.TranscribeTimeout)
		defer tcancel()

		text, err := c.engine.Transcribe(tctx, samples, c.cfg.SampleRate)
		if err != nil {
			reason := errorsx.ReasonSegmentTranscribe
			if errors.Is(err, context.DeadlineExceeded) {
				reason = errorsx.ReasonTranscriberTimeout
			}
			c.reportError(segID, errorsx.Wrap(err, reason))
			return
		}
		if text == "" {
			return
		}

		c.logger.Debug("segment_final",
			slog.String("segment_id", segID),
			slog.String("text", redact.Text(text)),
			slog.Bool("suppressed", c.suppressed.Load()))
		c.record(metrics.EventSegmentFinal, segID)

		if c.suppressed.Load() {
			c.mu.Lock()
			sink := c.sink
			c.mu.Unlock()
			if sink != nil {
				sink(text)
			}
			return
		}
		c.mu.Lock()
		cb := c.onTranscript
		c.mu.Unlock()
		if cb != nil {
			cb(Transcript{SegmentID: segID, Text: text, Start: start, End: end})
		}
	}()
}

func (c *Controller) reportError(segID string, err error) {
	c.logger.Warn("segment_transcribe_error",
		slog.String("segment_id", segID),
		slog.String("error", err.Error()))
	c.record(metrics.EventSegmentError, segID)
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

func (c *Controller) record(name, segID string) {
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{"segment_id": segID, "component": "recognizer"},
	})
}
