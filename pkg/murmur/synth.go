package murmur

import "context"

// Synthesizer converts text to PCM off the real-time thread. Implementations
// stream batches through emit as they become available; returning an error from
// emit (typically session cancellation) stops synthesis early. The samples
// slice is only valid for the duration of the emit call and may be reused.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, emit func(samples []float32, rate int) error) error
}
