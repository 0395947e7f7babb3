package murmur

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Audio         AudioConfig         `mapstructure:"audio"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Recognizer    RecognizerConfig    `mapstructure:"recognizer"`
	StopPhrase    StopPhraseConfig    `mapstructure:"stop_phrase"`
	VoiceMode     string              `mapstructure:"voice_mode"`
	AEC           bool                `mapstructure:"aec"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type AudioConfig struct {
	SampleRate     int `mapstructure:"sample_rate"`
	FrameMS        int `mapstructure:"frame_ms"`
	QueueCapacity  int `mapstructure:"queue_capacity"`
	DeviceBufferMS int `mapstructure:"device_buffer_ms"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	Synthesis     VendorConfig `mapstructure:"synthesis"`
	Transcription VendorConfig `mapstructure:"transcription"`
	VAD           VendorConfig `mapstructure:"vad"`
	Capture       VendorConfig `mapstructure:"capture"`
}

type RecognizerConfig struct {
	SilenceMS           int `mapstructure:"silence_ms"`
	MaxSegmentMS        int `mapstructure:"max_segment_ms"`
	TranscribeTimeoutMS int `mapstructure:"transcribe_timeout_ms"`
}

type StopPhraseConfig struct {
	Strong          []string `mapstructure:"strong"`
	Ambiguous       []string `mapstructure:"ambiguous"`
	ConfirmWindowMS int      `mapstructure:"confirm_window_ms"`
	ConfirmCount    int      `mapstructure:"confirm_count"`
}

type ObservabilityConfig struct {
	EventsPath string `mapstructure:"events_path"`
	AsyncDepth int    `mapstructure:"async_depth"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.frame_ms", 30)
	v.SetDefault("audio.queue_capacity", 64)
	v.SetDefault("audio.device_buffer_ms", 50)
	v.SetDefault("recognizer.silence_ms", 500)
	v.SetDefault("recognizer.max_segment_ms", 15000)
	v.SetDefault("recognizer.transcribe_timeout_ms", 10000)
	v.SetDefault("stop_phrase.strong", []string{"ok stop", "okay stop"})
	v.SetDefault("stop_phrase.ambiguous", []string{"stop"})
	v.SetDefault("stop_phrase.confirm_window_ms", 1500)
	v.SetDefault("stop_phrase.confirm_count", 2)
	v.SetDefault("voice_mode", "stop")
	v.SetDefault("aec", false)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("vendors.vad.provider", "energy")
	v.SetDefault("observability.events_path", "")
	v.SetDefault("observability.async_depth", 256)
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.Synthesis.Provider) == "" {
		return fmt.Errorf("vendors.synthesis.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Transcription.Provider) == "" {
		return fmt.Errorf("vendors.transcription.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Capture.Provider) == "" {
		return fmt.Errorf("vendors.capture.provider is required")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}
	switch c.VoiceMode {
	case "full", "wait", "stop", "push_to_talk", "ptt":
	default:
		return fmt.Errorf("voice_mode must be one of full, wait, stop, push_to_talk")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.Synthesis.Settings = expandSettings(cfg.Vendors.Synthesis.Settings)
	cfg.Vendors.Transcription.Settings = expandSettings(cfg.Vendors.Transcription.Settings)
	cfg.Vendors.VAD.Settings = expandSettings(cfg.Vendors.VAD.Settings)
	cfg.Vendors.Capture.Settings = expandSettings(cfg.Vendors.Capture.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
