// Package mock provides deterministic in-memory engines for tests and the
// example programs: a tone synthesizer, a scripted transcriber and a scripted
// capture source.
package mock

import (
	"context"
	"math"
	"time"

	"github.com/murmurkit/murmur/pkg/audio"
)

type SynthConfig struct {
	SampleRate int
	// BatchDuration is the audible length of each emitted batch.
	BatchDuration time.Duration
	// DurationPerChar scales utterance length with text length.
	DurationPerChar time.Duration
	// Frequency of the generated tone.
	Frequency float64
	// Amplitude in [0, 1].
	Amplitude float64
	// RealTime throttles emission to the audible rate. Tests leave it off.
	RealTime bool
}

// Synthesizer generates a sine tone whose length tracks the input text. The
// output is deterministic for a given config and text.
type Synthesizer struct {
	cfg SynthConfig
}

func NewSynthesizer(cfg SynthConfig) *Synthesizer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.BatchDuration <= 0 {
		cfg.BatchDuration = 100 * time.Millisecond
	}
	if cfg.DurationPerChar <= 0 {
		cfg.DurationPerChar = 40 * time.Millisecond
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 440
	}
	if cfg.Amplitude <= 0 || cfg.Amplitude > 1 {
		cfg.Amplitude = 0.3
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_synth" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string, emit func(samples []float32, rate int) error) error {
	total := int(time.Duration(len(text)) * s.cfg.DurationPerChar * time.Duration(s.cfg.SampleRate) / time.Second)
	if total == 0 {
		return nil
	}
	batch := int(s.cfg.BatchDuration * time.Duration(s.cfg.SampleRate) / time.Second)
	if batch <= 0 {
		batch = total
	}

	step := 2 * math.Pi * s.cfg.Frequency / float64(s.cfg.SampleRate)
	for off := 0; off < total; off += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := batch
		if off+n > total {
			n = total - off
		}
		samples := make([]float32, n)
		for i := range samples {
			samples[i] = float32(s.cfg.Amplitude * math.Sin(step*float64(off+i)))
		}
		if err := emit(samples, s.cfg.SampleRate); err != nil {
			return err
		}
		if s.cfg.RealTime {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(audio.DurationOf(n, s.cfg.SampleRate)):
			}
		}
	}
	return nil
}
