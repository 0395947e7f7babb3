// Package deepgram transcribes VAD-bounded segments through the Deepgram live
// websocket client: one short-lived connection per segment, final transcripts
// collected until the server closes the stream.
package deepgram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/errorsx"
	"github.com/murmurkit/murmur/pkg/logging"
	"github.com/murmurkit/murmur/pkg/recognizer"
)

type Config struct {
	APIKey   string
	Model    string
	Language string
}

type Transcriber struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Transcriber{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (t *Transcriber) Name() string { return "deepgram_stt" }

// Transcribe streams one segment's PCM and returns the concatenated final
// transcripts. The caller's context bounds the whole exchange.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, rate int) (string, error) {
	if t.cfg.APIKey == "" {
		return "", errorsx.Wrap(errors.New("missing deepgram api key"), errorsx.ReasonSTTConnect)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cb := &collector{done: make(chan struct{}), logger: t.logger}

	clientOptions := &interfaces.ClientOptions{}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    t.cfg.Language,
		Encoding:    "linear16",
		SampleRate:  rate,
		Channels:    1,
		SmartFormat: true,
	}

	dg, err := client.NewWSUsingCallback(runCtx, t.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		t.logger.Error("client_create_error", slog.String("error", err.Error()))
		return "", errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}
	if connected := dg.Connect(); !connected {
		t.logger.Error("connect_failed")
		return "", errorsx.Wrap(errors.New("deepgram connection failed"), errorsx.ReasonSTTConnect)
	}
	defer dg.Stop()

	pr, pw := io.Pipe()
	go func() {
		if err := dg.Stream(pr); err != nil && runCtx.Err() == nil {
			t.logger.Error("stream_error", slog.String("error", err.Error()))
		}
	}()

	pcm := audio.FloatToS16LE(samples, nil)
	if _, err := pw.Write(pcm); err != nil {
		_ = pw.Close()
		return "", errorsx.Wrap(err, errorsx.ReasonSTTSend)
	}
	// Closing the writer ends the audio stream; the server flushes its final
	// results and closes the connection, which signals the collector.
	_ = pw.Close()

	select {
	case <-cb.done:
	case <-ctx.Done():
		if text := cb.text(); text != "" {
			return text, nil
		}
		return "", errorsx.Wrap(ctx.Err(), errorsx.ReasonTranscriberTimeout)
	}
	return cb.text(), nil
}

// collector accumulates final transcripts from the live callback.
type collector struct {
	mu     sync.Mutex
	parts  []string
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (c *collector) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(strings.Join(c.parts, " "))
}

func (c *collector) finish() {
	c.once.Do(func() { close(c.done) })
}

func (c *collector) Open(or *msginterfaces.OpenResponse) error {
	c.logger.Debug("connection_opened")
	return nil
}

func (c *collector) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil
	}
	if mr.IsFinal || mr.SpeechFinal {
		c.mu.Lock()
		c.parts = append(c.parts, alt.Transcript)
		c.mu.Unlock()
	}
	return nil
}

func (c *collector) Metadata(md *msginterfaces.MetadataResponse) error {
	return nil
}

func (c *collector) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *collector) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	return nil
}

func (c *collector) Close(cr *msginterfaces.CloseResponse) error {
	c.logger.Debug("connection_closed")
	c.finish()
	return nil
}

func (c *collector) Error(er *msginterfaces.ErrorResponse) error {
	c.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	c.finish()
	return nil
}

func (c *collector) UnhandledEvent(byData []byte) error {
	return nil
}

var _ recognizer.Transcriber = (*Transcriber)(nil)
