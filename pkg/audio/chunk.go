package audio

import "time"

const (
	// DefaultSampleRate is the library-wide default for mono PCM.
	DefaultSampleRate = 16000
	// DefaultFrameDuration is the capture frame cadence fed to the VAD.
	DefaultFrameDuration = 30 * time.Millisecond
)

// Chunk is an immutable block of interleaved mono float32 samples produced by a
// synthesis engine and consumed exactly once by the render callback. SessionID
// ties the chunk to the playback session that requested it so stale producers
// can be detected after cancellation.
type Chunk struct {
	sessionID string
	samples   []float32
	rate      int
}

func NewChunk(sessionID string, samples []float32, rate int) Chunk {
	buf := make([]float32, len(samples))
	copy(buf, samples)
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return Chunk{sessionID: sessionID, samples: buf, rate: rate}
}

func (c Chunk) SessionID() string { return c.sessionID }
func (c Chunk) Rate() int         { return c.rate }
func (c Chunk) Len() int          { return len(c.samples) }

// Samples returns a copy of the sample data.
func (c Chunk) Samples() []float32 {
	return append([]float32(nil), c.samples...)
}

// RawSamples returns the backing slice without copying. Callers must not
// mutate it; the render callback uses this to avoid allocation.
func (c Chunk) RawSamples() []float32 { return c.samples }

// Duration returns the audible length of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.rate <= 0 {
		return 0
	}
	return time.Duration(len(c.samples)) * time.Second / time.Duration(c.rate)
}

// FrameSize returns the sample count of one VAD frame at the given rate.
func FrameSize(rate int, frame time.Duration) int {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if frame <= 0 {
		frame = DefaultFrameDuration
	}
	return int(time.Duration(rate) * frame / time.Second)
}
