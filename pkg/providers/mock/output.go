package mock

import (
	"errors"
	"sync"
	"time"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/player"
)

type OutputConfig struct {
	SampleRate int
	// Period is the simulated callback cadence.
	Period time.Duration
	// StartErr simulates an unopenable device.
	StartErr error
	// Record keeps every rendered sample for inspection.
	Record bool
}

// Output simulates an audio device: it pulls the renderer at a steady cadence
// on its own goroutine and optionally records what was rendered.
type Output struct {
	cfg     OutputConfig
	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	samples []float32
}

func NewOutput(cfg OutputConfig) *Output {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Period <= 0 {
		cfg.Period = 20 * time.Millisecond
	}
	return &Output{cfg: cfg}
}

func (o *Output) Start(r player.Renderer) error {
	if o.cfg.StartErr != nil {
		return o.cfg.StartErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stop != nil {
		return errors.New("mock output already started")
	}
	o.stop = make(chan struct{})
	o.done = make(chan struct{})
	go o.run(r, o.stop, o.done)
	return nil
}

func (o *Output) Close() error {
	o.mu.Lock()
	stop, done := o.stop, o.done
	o.stop, o.done = nil, nil
	o.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// Rendered returns a copy of everything rendered so far. Only meaningful with
// Record enabled.
func (o *Output) Rendered() []float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]float32, len(o.samples))
	copy(out, o.samples)
	return out
}

func (o *Output) run(r player.Renderer, stop, done chan struct{}) {
	defer close(done)
	size := int(time.Duration(o.cfg.SampleRate) * o.cfg.Period / time.Second)
	buf := make([]float32, size)
	ticker := time.NewTicker(o.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Render(buf)
			if o.cfg.Record {
				o.mu.Lock()
				o.samples = append(o.samples, buf...)
				o.mu.Unlock()
			}
		}
	}
}

var _ player.Output = (*Output)(nil)
