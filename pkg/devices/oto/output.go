// Package oto adapts github.com/ebitengine/oto/v3 to the player's Output
// interface. The oto player pulls PCM through an io.Reader; Read invocations
// happen on oto's internal audio goroutine, so the bridge forwards each Read
// straight into the renderer and converts float32 to s16le in place.
package oto

import (
	"errors"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/player"
)

// Config controls the underlying oto context.
type Config struct {
	SampleRate int
	// BufferSize is the device-side buffer length. Smaller values reduce
	// pause and stop latency at the cost of underrun headroom.
	BufferSize time.Duration
}

// Output drives an oto v3 player from a Renderer. Mono, 16-bit.
type Output struct {
	mu     sync.Mutex
	cfg    Config
	ctx    *oto.Context
	player *oto.Player
	closed bool
}

func NewOutput(cfg Config) *Output {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50 * time.Millisecond
	}
	return &Output{cfg: cfg}
}

// Start opens the audio device and begins pulling the renderer. Open failures
// are returned immediately so the caller can surface device unavailability
// without changing its own state.
func (o *Output) Start(r player.Renderer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("oto output closed")
	}
	if o.player != nil {
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   o.cfg.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   o.cfg.BufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return err
	}
	<-ready

	o.ctx = ctx
	o.player = ctx.NewPlayer(&renderReader{r: r})
	o.player.Play()
	return nil
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if o.player != nil {
		o.player.Pause()
		err := o.player.Close()
		o.player = nil
		return err
	}
	return nil
}

// renderReader bridges the pull-based oto player to the renderer. The scratch
// buffer is reused across reads so the hot path does not allocate.
type renderReader struct {
	r       player.Renderer
	scratch []float32
}

func (rr *renderReader) Read(p []byte) (int, error) {
	n := len(p) / 2
	if n == 0 {
		return 0, nil
	}
	if cap(rr.scratch) < n {
		rr.scratch = make([]float32, n)
	}
	frame := rr.scratch[:n]
	rr.r.Render(frame)
	audio.FloatToS16LE(frame, p[:n*2])
	return n * 2, nil
}

var _ player.Output = (*Output)(nil)
