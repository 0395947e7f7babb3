package murmur

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
vendors:
  synthesis:
    provider: mock
  transcription:
    provider: mock
  capture:
    provider: mock
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("sample rate default %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.FrameMS != 30 || cfg.Audio.QueueCapacity != 64 {
		t.Fatalf("audio defaults %+v", cfg.Audio)
	}
	if cfg.VoiceMode != "stop" {
		t.Fatalf("voice mode default %q", cfg.VoiceMode)
	}
	if cfg.StopPhrase.ConfirmWindowMS != 1500 || cfg.StopPhrase.ConfirmCount != 2 {
		t.Fatalf("stop phrase defaults %+v", cfg.StopPhrase)
	}
	if len(cfg.StopPhrase.Strong) != 2 {
		t.Fatalf("strong phrase defaults %v", cfg.StopPhrase.Strong)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatal("redaction should default on")
	}
	if cfg.Vendors.VAD.Provider != "energy" {
		t.Fatalf("vad default %q", cfg.Vendors.VAD.Provider)
	}
}

func TestLoadConfigMissingProvider(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
vendors:
  synthesis:
    provider: mock
  capture:
    provider: mock
`))
	if err == nil {
		t.Fatal("expected validation error for missing transcription provider")
	}
}

func TestLoadConfigInvalidVoiceMode(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, minimalConfig+`
voice_mode: shout
`))
	if err == nil {
		t.Fatal("expected validation error for bad voice mode")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("MURMUR_TEST_KEY", "secret-key")
	cfg2, err := LoadConfig(writeConfig(t, `
vendors:
  synthesis:
    provider: elevenlabs
    settings:
      api_key: ${MURMUR_TEST_KEY}
  transcription:
    provider: mock
  capture:
    provider: mock
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg2.Vendors.Synthesis.Settings["api_key"]; got != "secret-key" {
		t.Fatalf("env not expanded: %v", got)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewProviderRegistry()
	if _, err := reg.BuildSynthesizer("nope", Config{}); err == nil {
		t.Fatal("expected error for unknown synthesizer")
	}
	if _, err := reg.BuildTranscriber("nope", Config{}); err == nil {
		t.Fatal("expected error for unknown transcriber")
	}
	if _, err := reg.BuildCapture("nope", Config{}); err == nil {
		t.Fatal("expected error for unknown capture source")
	}
}

func TestRegistryEnergyVADFallback(t *testing.T) {
	reg := NewProviderRegistry()
	vad, err := reg.BuildVAD("energy", Config{})
	if err != nil {
		t.Fatalf("energy vad: %v", err)
	}
	if vad == nil {
		t.Fatal("nil vad")
	}
	if _, err := reg.BuildVAD("webrtc", Config{}); err == nil {
		t.Fatal("expected error for unregistered vad")
	}
}
