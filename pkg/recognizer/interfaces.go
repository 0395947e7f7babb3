package recognizer

import (
	"context"
	"time"
)

// CaptureSource delivers fixed-size mono float32 frames from a microphone or
// equivalent. Start opens the device and returns the frame channel; the channel
// closes when the source stops. A failed open returns the error immediately so
// callers can surface device unavailability without changing state.
type CaptureSource interface {
	Start(ctx context.Context) (<-chan []float32, error)
	Stop() error
}

// VAD classifies one frame as speech or silence. Called once per frame on the
// capture goroutine; implementations keep their own smoothing state.
type VAD interface {
	Classify(frame []float32) bool
	Reset()
}

// Transcriber converts one VAD-bounded speech segment to text. Invoked on a
// worker goroutine, never on the capture loop.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, rate int) (string, error)
}

// EchoCanceller removes far-end (played-back) audio from a near-end mic frame.
// Applied before VAD classification when AEC is enabled.
type EchoCanceller interface {
	Cancel(near, far []float32) []float32
}

// Transcript is one finished segment's text with its audio extent.
type Transcript struct {
	SegmentID string
	Text      string
	Start     time.Time
	End       time.Time
}
