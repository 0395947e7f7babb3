// Package murmur is the top-level facade: it wires the player, recognizer,
// stop-phrase detector and voice-mode coordinator into one Manager. Managers
// hold no global state, so independent instances can coexist in one process.
package murmur

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/configutil"
	"github.com/murmurkit/murmur/pkg/logging"
	"github.com/murmurkit/murmur/pkg/metrics"
	"github.com/murmurkit/murmur/pkg/player"
	"github.com/murmurkit/murmur/pkg/recognizer"
	"github.com/murmurkit/murmur/pkg/redact"
	"github.com/murmurkit/murmur/pkg/stopphrase"
	"github.com/murmurkit/murmur/pkg/voicemode"
)

// Deps carries the engines and devices the Manager coordinates. Output and
// Synthesizer are required for speaking; Capture and Transcriber for
// listening. VAD defaults to the energy detector when nil.
type Deps struct {
	Output        player.Output
	Synthesizer   Synthesizer
	Capture       recognizer.CaptureSource
	Transcriber   recognizer.Transcriber
	VAD           recognizer.VAD
	EchoCanceller recognizer.EchoCanceller
	Logger        *slog.Logger
	Observer      metrics.Observer
}

type Manager struct {
	cfg    Config
	logger *slog.Logger
	obs    metrics.Observer

	player *player.StreamingPlayer
	rec    *recognizer.Controller
	det    *stopphrase.Detector
	coord  *voicemode.Coordinator
	synth  Synthesizer

	mu        sync.Mutex
	onStop    func(stopphrase.Match)
	listening bool
	closed    bool

	producers sync.WaitGroup
	asyncObs  *metrics.AsyncObserver
	eventsOut *os.File
}

func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if deps.Output == nil {
		return nil, errors.New("murmur: output device is required")
	}
	if deps.Synthesizer == nil {
		return nil, errors.New("murmur: synthesizer is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	m := &Manager{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "murmur"),
		synth:  deps.Synthesizer,
	}
	if err := m.initObserver(deps.Observer); err != nil {
		return nil, err
	}

	m.player = player.New(player.Config{
		SampleRate:    cfg.Audio.SampleRate,
		QueueCapacity: cfg.Audio.QueueCapacity,
		Logger:        logger,
		Observer:      m.obs,
	}, deps.Output)

	m.det = stopphrase.New(stopphrase.Config{
		Strong:        cfg.StopPhrase.Strong,
		Ambiguous:     cfg.StopPhrase.Ambiguous,
		ConfirmWindow: configutil.DurationMS(cfg.StopPhrase.ConfirmWindowMS, 1500*time.Millisecond),
		ConfirmCount:  cfg.StopPhrase.ConfirmCount,
		Logger:        logger,
		Observer:      m.obs,
	}, m.handleStopPhrase)

	if deps.Capture != nil && deps.Transcriber != nil {
		m.rec = recognizer.NewController(recognizer.Config{
			SampleRate:         cfg.Audio.SampleRate,
			FrameDuration:      configutil.DurationMS(cfg.Audio.FrameMS, audio.DefaultFrameDuration),
			SilenceDuration:    configutil.DurationMS(cfg.Recognizer.SilenceMS, 500*time.Millisecond),
			MaxSegmentDuration: configutil.DurationMS(cfg.Recognizer.MaxSegmentMS, 15*time.Second),
			TranscribeTimeout:  configutil.DurationMS(cfg.Recognizer.TranscribeTimeoutMS, 10*time.Second),
			Logger:             logger,
			Observer:           m.obs,
		}, deps.Capture, deps.VAD, deps.Transcriber)
		m.rec.SetSuppressedSink(m.det.Feed)
		if deps.EchoCanceller != nil {
			m.rec.SetEchoCanceller(deps.EchoCanceller)
		}

		m.coord = voicemode.NewCoordinator(m.player, m.rec, logger, m.obs)
		mode, err := voicemode.ParseMode(cfg.VoiceMode)
		if err != nil {
			m.logger.Warn("invalid_voice_mode_config",
				slog.String("configured", cfg.VoiceMode),
				slog.String("fallback", mode.String()))
		}
		m.coord.SetMode(mode)
		m.player.AddListener(m.coord.HandleLifecycle)
		if cfg.AEC {
			m.coord.EnableAEC(true)
		}
	}

	m.logger.Info("manager_initialized",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.String("voice_mode", cfg.VoiceMode),
		slog.Bool("aec", cfg.AEC),
		slog.Bool("recognition", m.rec != nil))
	return m, nil
}

// NewManagerFromRegistry builds the engines named in config from the registry.
func NewManagerFromRegistry(cfg Config, reg *ProviderRegistry, out player.Output) (*Manager, error) {
	synth, err := reg.BuildSynthesizer(cfg.Vendors.Synthesis.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("build synthesizer: %w", err)
	}
	deps := Deps{Output: out, Synthesizer: synth}
	if cfg.Vendors.Capture.Provider != "" {
		if deps.Capture, err = reg.BuildCapture(cfg.Vendors.Capture.Provider, cfg); err != nil {
			return nil, fmt.Errorf("build capture: %w", err)
		}
	}
	if cfg.Vendors.Transcription.Provider != "" {
		if deps.Transcriber, err = reg.BuildTranscriber(cfg.Vendors.Transcription.Provider, cfg); err != nil {
			return nil, fmt.Errorf("build transcriber: %w", err)
		}
	}
	if deps.VAD, err = reg.BuildVAD(cfg.Vendors.VAD.Provider, cfg); err != nil {
		return nil, fmt.Errorf("build vad: %w", err)
	}
	return NewManager(cfg, deps)
}

func (m *Manager) initObserver(override metrics.Observer) error {
	if override != nil {
		m.obs = override
		return nil
	}
	if m.cfg.Observability.EventsPath == "" {
		m.obs = metrics.NoopObserver{}
		return nil
	}
	f, err := os.OpenFile(m.cfg.Observability.EventsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	m.eventsOut = f
	m.asyncObs = metrics.NewAsyncObserver(metrics.NewJSONLObserver(f), m.cfg.Observability.AsyncDepth)
	m.obs = m.asyncObs
	return nil
}

// Speak synthesizes text and plays it as a new session, cancelling any prior
// session. It returns the new session id without waiting for playback.
func (m *Manager) Speak(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", player.ErrPlayerClosed
	}
	m.mu.Unlock()

	sess := player.NewSession()
	m.det.Reset()
	if err := m.player.Play(sess); err != nil {
		return "", err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	m.producers.Add(1)
	go m.produce(ctx, sess, text)
	return sess.ID(), nil
}

// produce runs synthesis for one session and feeds the player. Cancellation
// surfaces as ErrSessionMismatch from Enqueue; that ends production quietly.
func (m *Manager) produce(ctx context.Context, sess *player.Session, text string) {
	defer m.producers.Done()

	err := m.synth.Synthesize(ctx, text, func(samples []float32, rate int) error {
		if sess.Cancelled() {
			return player.ErrSessionMismatch
		}
		chunk := audio.NewChunk(sess.ID(), samples, rate)
		return m.player.Enqueue(ctx, sess.ID(), chunk)
	})
	if err != nil {
		if errors.Is(err, player.ErrSessionMismatch) || sess.Cancelled() {
			m.logger.Debug("synthesis_cancelled", slog.String("session_id", sess.ID()))
			return
		}
		m.logger.Error("synthesis_failed",
			slog.String("session_id", sess.ID()),
			slog.String("error", err.Error()))
	}
	// Mark complete even after an error so partial audio drains and the
	// session ends instead of hanging in Playing.
	m.player.Finish(sess.ID())
}

func (m *Manager) Stop() error   { return m.player.Stop() }
func (m *Manager) Pause() error  { return m.player.Pause() }
func (m *Manager) Resume() error { return m.player.Resume() }

// PlayerState exposes the playback state for tests and UIs.
func (m *Manager) PlayerState() player.State { return m.player.State() }

// AddLifecycleListener registers a playback lifecycle listener.
func (m *Manager) AddLifecycleListener(l player.Listener) { m.player.AddListener(l) }

// Listen starts capture. onTranscript receives normal transcripts; onStop
// fires when a stop phrase halts playback. Fails with the recognizer's
// ErrDeviceUnavailable when the capture device cannot be opened.
func (m *Manager) Listen(ctx context.Context, onTranscript func(recognizer.Transcript), onStop func(stopphrase.Match)) error {
	if m.rec == nil {
		return errors.New("murmur: recognition not configured")
	}
	m.mu.Lock()
	if m.listening {
		m.mu.Unlock()
		return recognizer.ErrAlreadyListening
	}
	m.onStop = onStop
	m.mu.Unlock()

	err := m.rec.Start(ctx, func(t recognizer.Transcript) {
		if m.coord != nil {
			m.coord.NotifySpeech()
		}
		if onTranscript != nil {
			onTranscript(t)
		}
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.listening = true
	m.mu.Unlock()
	return nil
}

// StopListening tears down capture.
func (m *Manager) StopListening() error {
	if m.rec == nil {
		return errors.New("murmur: recognition not configured")
	}
	m.mu.Lock()
	if !m.listening {
		m.mu.Unlock()
		return recognizer.ErrNotListening
	}
	m.listening = false
	m.mu.Unlock()
	return m.rec.Stop()
}

// SetVoiceMode stages a mode change, applied at the next lifecycle event.
func (m *Manager) SetVoiceMode(mode voicemode.Mode) error {
	if m.coord == nil {
		return errors.New("murmur: recognition not configured")
	}
	m.coord.SetMode(mode)
	return nil
}

// EnableAEC toggles the far-end feed from player to recognizer.
func (m *Manager) EnableAEC(on bool) error {
	if m.coord == nil {
		return errors.New("murmur: recognition not configured")
	}
	m.coord.EnableAEC(on)
	return nil
}

func (m *Manager) handleStopPhrase(match stopphrase.Match) {
	if err := m.player.Stop(); err != nil && !errors.Is(err, player.ErrPlayerClosed) {
		m.logger.Warn("stop_phrase_stop_failed", slog.String("error", err.Error()))
	}
	m.mu.Lock()
	cb := m.onStop
	m.mu.Unlock()
	if cb != nil {
		cb(match)
	}
}

// Drain waits for in-flight synthesis producers and stops capture, satisfying
// the runner's Drainer contract.
func (m *Manager) Drain() error {
	m.producers.Wait()
	m.mu.Lock()
	listening := m.listening
	m.listening = false
	m.mu.Unlock()
	if listening {
		return m.rec.Stop()
	}
	return nil
}

// Close releases the player, recognizer and observer resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	// Cancel the active session before waiting on producers: cancellation
	// drains the chunk queue, which frees a producer parked on backpressure.
	// A paused player never drains on its own, so the order matters.
	err := m.player.Stop()
	if errors.Is(err, player.ErrPlayerClosed) {
		err = nil
	}
	if derr := m.Drain(); err == nil {
		err = derr
	}
	if m.coord != nil {
		m.coord.Close()
	}
	if cerr := m.player.Close(); err == nil {
		err = cerr
	}
	if m.asyncObs != nil {
		m.asyncObs.Close()
	}
	if m.eventsOut != nil {
		if cerr := m.eventsOut.Close(); err == nil {
			err = cerr
		}
	}
	m.logger.Info("manager_closed")
	return err
}
