package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// FloatToS16LE converts float32 samples in [-1, 1] to signed 16-bit little
// endian PCM bytes, clipping out-of-range values.
func FloatToS16LE(samples []float32, dst []byte) []byte {
	need := len(samples) * 2
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * math.MaxInt16)
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
	}
	return dst
}

// S16LEToFloat converts signed 16-bit little endian PCM bytes to float32
// samples in [-1, 1]. Trailing odd bytes are ignored.
func S16LEToFloat(data []byte, dst []float32) []float32 {
	n := len(data) / 2
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		dst[i] = float32(v) / math.MaxInt16
	}
	return dst
}

// Silence writes zero samples over dst.
func Silence(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
}

// DurationOf returns the audible length of a sample count at the given rate.
func DurationOf(samples, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(rate)
}

// RMS returns the root mean square level of a frame, used by the energy VAD.
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
