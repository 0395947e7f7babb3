package elevenlabs

import (
	"context"
	"testing"

	"github.com/murmurkit/murmur/pkg/errorsx"
	"github.com/murmurkit/murmur/pkg/metrics"
	"github.com/murmurkit/murmur/pkg/resilience"
)

func TestSynthesizeRequiresConfig(t *testing.T) {
	s := New(Config{})
	err := s.Synthesize(context.Background(), "hi", func([]float32, int) error { return nil })
	if !errorsx.HasReason(err, errorsx.ReasonSynthConnect) {
		t.Fatalf("expected synth_connect reason, got %v", err)
	}
}

func TestOpenBreakerRecordsRateLimit(t *testing.T) {
	mem := metrics.NewMemoryObserver()
	s := New(Config{APIKey: "key", VoiceID: "voice", Observer: mem})
	for i := 0; i < 3; i++ {
		s.breaker.OnError(resilience.RateLimitError{Provider: "elevenlabs"})
	}

	err := s.Synthesize(context.Background(), "hi", func([]float32, int) error { return nil })
	if !errorsx.HasReason(err, errorsx.ReasonSynthRateLimit) {
		t.Fatalf("expected synth_rate_limit reason, got %v", err)
	}
	if len(mem.Events) != 1 || mem.Events[0].Name != metrics.EventRateLimit {
		t.Fatalf("rate limit event not recorded: %+v", mem.Events)
	}
}
