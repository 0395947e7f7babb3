package recognizer

import "github.com/murmurkit/murmur/pkg/audio"

const (
	// DefaultEnergyThreshold is the RMS level above which a frame counts as
	// speech. Tuned for normalized float32 capture at typical mic gain.
	DefaultEnergyThreshold = 0.015
	// DefaultHangoverFrames keeps classifying silence as speech for this many
	// frames after energy drops, bridging intra-word gaps.
	DefaultHangoverFrames = 8
)

// EnergyVAD is the built-in RMS-threshold voice activity detector, used when
// no external VAD is injected.
type EnergyVAD struct {
	threshold float64
	hangover  int
	remaining int
}

func NewEnergyVAD(threshold float64, hangover int) *EnergyVAD {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	if hangover <= 0 {
		hangover = DefaultHangoverFrames
	}
	return &EnergyVAD{threshold: threshold, hangover: hangover}
}

func (v *EnergyVAD) Classify(frame []float32) bool {
	if audio.RMS(frame) >= v.threshold {
		v.remaining = v.hangover
		return true
	}
	if v.remaining > 0 {
		v.remaining--
		return true
	}
	return false
}

func (v *EnergyVAD) Reset() { v.remaining = 0 }

var _ VAD = (*EnergyVAD)(nil)
