package murmur

import (
	"fmt"
	"strings"

	"github.com/murmurkit/murmur/pkg/recognizer"
)

type SynthesizerFactory func(cfg Config) (Synthesizer, error)
type TranscriberFactory func(cfg Config) (recognizer.Transcriber, error)
type VADFactory func(cfg Config) (recognizer.VAD, error)
type CaptureFactory func(cfg Config) (recognizer.CaptureSource, error)

// ProviderRegistry maps config provider names to factories. Applications
// register the engines they link and select them by name in config.
type ProviderRegistry struct {
	synth   map[string]SynthesizerFactory
	stt     map[string]TranscriberFactory
	vad     map[string]VADFactory
	capture map[string]CaptureFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		synth:   make(map[string]SynthesizerFactory),
		stt:     make(map[string]TranscriberFactory),
		vad:     make(map[string]VADFactory),
		capture: make(map[string]CaptureFactory),
	}
}

func (r *ProviderRegistry) RegisterSynthesizer(name string, factory SynthesizerFactory) {
	r.synth[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.stt[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterVAD(name string, factory VADFactory) {
	r.vad[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterCapture(name string, factory CaptureFactory) {
	r.capture[normalize(name)] = factory
}

func (r *ProviderRegistry) BuildSynthesizer(provider string, cfg Config) (Synthesizer, error) {
	fn := r.synth[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("synthesis provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildTranscriber(provider string, cfg Config) (recognizer.Transcriber, error) {
	fn := r.stt[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("transcription provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildVAD(provider string, cfg Config) (recognizer.VAD, error) {
	if normalize(provider) == "" || normalize(provider) == "energy" {
		if fn := r.vad["energy"]; fn != nil {
			return fn(cfg)
		}
		return recognizer.NewEnergyVAD(0, 0), nil
	}
	fn := r.vad[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("vad provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildCapture(provider string, cfg Config) (recognizer.CaptureSource, error) {
	fn := r.capture[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("capture provider not registered: %s", provider)
	}
	return fn(cfg)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
