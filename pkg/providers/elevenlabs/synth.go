// Package elevenlabs streams synthesis over the ElevenLabs websocket API,
// decoding base64 PCM messages into float32 batches.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/errorsx"
	"github.com/murmurkit/murmur/pkg/logging"
	"github.com/murmurkit/murmur/pkg/metrics"
	"github.com/murmurkit/murmur/pkg/murmur"
	"github.com/murmurkit/murmur/pkg/resilience"
)

type Config struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	SampleRate int
	// Stability and SimilarityBoost are ElevenLabs voice settings.
	Stability       float64
	SimilarityBoost float64
	Observer        metrics.Observer
}

// Synthesizer opens one websocket connection per Synthesize call: send the
// text, stream decoded audio batches out, close on the final message. A rate
// limit trips the shared circuit breaker.
type Synthesizer struct {
	cfg     Config
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	logger  *slog.Logger
	obs     metrics.Observer
}

func New(cfg Config) *Synthesizer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Stability <= 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost <= 0 {
		cfg.SimilarityBoost = 0.8
	}
	obs := cfg.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Synthesizer{
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		retry:   resilience.NewRetryPolicy(2, 200*time.Millisecond),
		logger:  logging.NewComponentLogger(slog.Default(), "elevenlabs_synth"),
		obs:     obs,
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs_synth" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string, emit func(samples []float32, rate int) error) error {
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return errorsx.Wrap(errors.New("missing elevenlabs config"), errorsx.ReasonSynthConnect)
	}
	if !s.breaker.Allow() {
		s.recordRateLimit()
		return errorsx.Wrap(resilience.RateLimitError{Provider: "elevenlabs", Message: "circuit open"}, errorsx.ReasonSynthRateLimit)
	}

	var conn *websocket.Conn
	err := s.retry.Do(func() error {
		var derr error
		conn, derr = s.dial(ctx)
		if resilience.IsRateLimit(derr) {
			// Retrying a rate limit immediately only digs the hole deeper.
			return nil
		}
		return derr
	})
	if err == nil && conn == nil {
		err = resilience.RateLimitError{Provider: "elevenlabs", Message: "too many requests"}
	}
	if err != nil {
		s.breaker.OnError(err)
		if resilience.IsRateLimit(err) {
			s.recordRateLimit()
			return errorsx.Wrap(err, errorsx.ReasonSynthRateLimit)
		}
		return errorsx.Wrap(err, errorsx.ReasonSynthConnect)
	}
	s.breaker.OnSuccess()
	defer func() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	if err := s.sendText(conn, text); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSynthSend)
	}
	return s.readAudio(ctx, conn, emit)
}

func (s *Synthesizer) dial(ctx context.Context) (*websocket.Conn, error) {
	u := s.buildURL()
	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, u, http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Error("rate_limit_exceeded", slog.String("status", resp.Status))
			return nil, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		s.logger.Error("connect_failed", slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.Debug("connected", slog.String("voice_id", s.cfg.VoiceID))
	return conn, nil
}

func (s *Synthesizer) buildURL() string {
	base := "wss://api.elevenlabs.io/v1/text-to-speech/" + s.cfg.VoiceID + "/stream-input"
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", fmt.Sprintf("pcm_%d", s.cfg.SampleRate))
	q.Set("optimize_streaming_latency", "4")
	return base + "?" + q.Encode()
}

func (s *Synthesizer) sendText(conn *websocket.Conn, text string) error {
	open := map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        s.cfg.Stability,
			"similarity_boost": s.cfg.SimilarityBoost,
		},
		"generation_config": map[string]any{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	if err := writeJSON(conn, open); err != nil {
		return err
	}
	if !strings.HasSuffix(text, " ") {
		text += " "
	}
	if err := writeJSON(conn, map[string]any{"text": text, "try_trigger_generation": true}); err != nil {
		return err
	}
	// Empty text closes the input stream; the server flushes and finishes.
	return writeJSON(conn, map[string]any{"text": ""})
}

func (s *Synthesizer) readAudio(ctx context.Context, conn *websocket.Conn, emit func(samples []float32, rate int) error) error {
	var scratch []float32
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return errorsx.Wrap(err, errorsx.ReasonSynthSend)
		}
		var msg struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("unparseable_message", slog.Int("size_bytes", len(data)))
			continue
		}
		if msg.Error != "" {
			return errorsx.Wrap(fmt.Errorf("elevenlabs: %s", msg.Error), errorsx.ReasonSynthSend)
		}
		if msg.Audio != "" {
			raw, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				s.logger.Error("audio_decode_error", slog.String("error", err.Error()))
				continue
			}
			scratch = audio.S16LEToFloat(raw, scratch)
			if err := emit(scratch, s.cfg.SampleRate); err != nil {
				return err
			}
		}
		if msg.IsFinal {
			return nil
		}
	}
}

func writeJSON(conn *websocket.Conn, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Synthesizer) recordRateLimit() {
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventRateLimit,
		Time: time.Now(),
		Tags: map[string]string{"provider": "elevenlabs", "component": "synth"},
	})
}

var _ murmur.Synthesizer = (*Synthesizer)(nil)
