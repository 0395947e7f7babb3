package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/recognizer"
)

// ScriptSegment is a run of frames with one classification.
type ScriptSegment struct {
	Speech bool
	Frames int
}

type CaptureConfig struct {
	SampleRate int
	// FrameDuration sets the frame size; frames are emitted back to back
	// unless RealTime is set.
	FrameDuration time.Duration
	// Amplitude of generated speech frames; silence frames are zero.
	Amplitude float32
	Script    []ScriptSegment
	RealTime  bool
	// StartErr simulates an unavailable device.
	StartErr error
}

// CaptureSource plays back a scripted speech/silence pattern as capture
// frames, then idles until stopped.
type CaptureSource struct {
	cfg    CaptureConfig
	mu     sync.Mutex
	frames chan []float32
	cancel context.CancelFunc
}

func NewCaptureSource(cfg CaptureConfig) *CaptureSource {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = audio.DefaultFrameDuration
	}
	if cfg.Amplitude <= 0 {
		cfg.Amplitude = 0.5
	}
	return &CaptureSource{cfg: cfg}
}

func (c *CaptureSource) Start(ctx context.Context) (<-chan []float32, error) {
	if c.cfg.StartErr != nil {
		return nil, c.cfg.StartErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frames != nil {
		return nil, errors.New("capture already started")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.frames = make(chan []float32, 64)
	go c.run(runCtx, c.frames)
	return c.frames, nil
}

func (c *CaptureSource) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.frames = nil
	return nil
}

func (c *CaptureSource) run(ctx context.Context, out chan<- []float32) {
	defer close(out)
	size := audio.FrameSize(c.cfg.SampleRate, c.cfg.FrameDuration)
	for _, seg := range c.cfg.Script {
		for i := 0; i < seg.Frames; i++ {
			frame := audio.AcquireFrame(size)
			fill := float32(0)
			if seg.Speech {
				fill = c.cfg.Amplitude
			}
			for j := range frame {
				frame[j] = fill
			}
			select {
			case <-ctx.Done():
				audio.ReleaseFrame(frame)
				return
			case out <- frame:
			}
			if c.cfg.RealTime {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.cfg.FrameDuration):
				}
			}
		}
	}
	<-ctx.Done()
}

var _ recognizer.CaptureSource = (*CaptureSource)(nil)
