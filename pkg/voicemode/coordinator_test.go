package voicemode

import (
	"sync"
	"testing"
	"time"

	"github.com/murmurkit/murmur/pkg/audio"
	"github.com/murmurkit/murmur/pkg/player"
)

type fakePlayer struct {
	mu      sync.Mutex
	state   player.State
	stops   int
	farOn   bool
	farEnd  chan audio.Chunk
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{state: player.StateIdle, farEnd: make(chan audio.Chunk, 8)}
}

func (f *fakePlayer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = player.StateIdle
	return nil
}

func (f *fakePlayer) State() player.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakePlayer) setState(s player.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakePlayer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakePlayer) EnableFarEnd(on bool) {
	f.mu.Lock()
	f.farOn = on
	f.mu.Unlock()
}

func (f *fakePlayer) FarEnd() <-chan audio.Chunk { return f.farEnd }

type fakeRecognizer struct {
	mu         sync.Mutex
	paused     bool
	suppressed bool
	aec        bool
	farFrames  int
}

func (f *fakeRecognizer) PauseProcessing() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeRecognizer) ResumeProcessing() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *fakeRecognizer) SetSuppressed(on bool) {
	f.mu.Lock()
	f.suppressed = on
	f.mu.Unlock()
}

func (f *fakeRecognizer) EnableAEC(on bool) {
	f.mu.Lock()
	f.aec = on
	f.mu.Unlock()
}

func (f *fakeRecognizer) FeedFarEnd([]float32) {
	f.mu.Lock()
	f.farFrames++
	f.mu.Unlock()
}

func (f *fakeRecognizer) snapshot() (paused, suppressed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused, f.suppressed
}

func lifecycle(t player.EventType) player.LifecycleEvent {
	return player.LifecycleEvent{Type: t, SessionID: "s", Time: time.Now()}
}

func TestWaitModePausesProcessing(t *testing.T) {
	p, r := newFakePlayer(), &fakeRecognizer{}
	c := NewCoordinator(p, r, nil, nil)
	c.SetMode(ModeWait)

	c.HandleLifecycle(lifecycle(player.EventStart))
	if paused, _ := r.snapshot(); !paused {
		t.Fatal("wait mode did not pause processing on start")
	}
	c.HandleLifecycle(lifecycle(player.EventEnd))
	if paused, _ := r.snapshot(); paused {
		t.Fatal("wait mode did not resume processing on end")
	}
}

func TestStopModeSuppresses(t *testing.T) {
	p, r := newFakePlayer(), &fakeRecognizer{}
	c := NewCoordinator(p, r, nil, nil)
	// ModeStop is the default.

	c.HandleLifecycle(lifecycle(player.EventStart))
	if paused, suppressed := r.snapshot(); !suppressed || paused {
		t.Fatalf("stop mode: paused=%v suppressed=%v", paused, suppressed)
	}
	c.HandleLifecycle(lifecycle(player.EventEnd))
	if _, suppressed := r.snapshot(); suppressed {
		t.Fatal("stop mode did not clear suppression on end")
	}
}

func TestPushToTalkMatchesStopWhilePlaying(t *testing.T) {
	p, r := newFakePlayer(), &fakeRecognizer{}
	c := NewCoordinator(p, r, nil, nil)
	c.SetMode(ModePushToTalk)

	c.HandleLifecycle(lifecycle(player.EventStart))
	if _, suppressed := r.snapshot(); !suppressed {
		t.Fatal("push-to-talk did not suppress on start")
	}
	c.HandleLifecycle(lifecycle(player.EventEnd))
	if _, suppressed := r.snapshot(); suppressed {
		t.Fatal("push-to-talk did not clear suppression on end")
	}
}

func TestFullModeKeepsListeningAndBargesIn(t *testing.T) {
	p, r := newFakePlayer(), &fakeRecognizer{}
	c := NewCoordinator(p, r, nil, nil)
	c.SetMode(ModeFull)

	c.HandleLifecycle(lifecycle(player.EventStart))
	if paused, suppressed := r.snapshot(); paused || suppressed {
		t.Fatalf("full mode altered recognizer: paused=%v suppressed=%v", paused, suppressed)
	}

	p.setState(player.StatePlaying)
	if !c.NotifySpeech() {
		t.Fatal("speech during full-mode playback did not barge in")
	}
	if p.stopCount() != 1 {
		t.Fatalf("expected 1 stop, got %d", p.stopCount())
	}
	// Idle player: speech is not a barge-in.
	if c.NotifySpeech() {
		t.Fatal("barge-in fired while idle")
	}
}

func TestBargeInOnlyInFullMode(t *testing.T) {
	p, r := newFakePlayer(), &fakeRecognizer{}
	c := NewCoordinator(p, r, nil, nil)
	p.setState(player.StatePlaying)

	if c.NotifySpeech() {
		t.Fatal("barge-in fired in stop mode")
	}
	if p.stopCount() != 0 {
		t.Fatalf("player stopped %d times", p.stopCount())
	}
}

func TestModeChangeDeferredToNextLifecycleEvent(t *testing.T) {
	p, r := newFakePlayer(), &fakeRecognizer{}
	c := NewCoordinator(p, r, nil, nil)
	c.SetMode(ModeWait)

	// Staged but not applied until an event arrives.
	if c.Mode() != ModeStop {
		t.Fatalf("mode applied early: %v", c.Mode())
	}
	c.HandleLifecycle(lifecycle(player.EventStart))
	if c.Mode() != ModeWait {
		t.Fatalf("mode not applied at lifecycle event: %v", c.Mode())
	}
	if paused, _ := r.snapshot(); !paused {
		t.Fatal("newly applied wait mode not honored")
	}
}

func TestInvalidModeFallsBackToStop(t *testing.T) {
	p, r := newFakePlayer(), &fakeRecognizer{}
	c := NewCoordinator(p, r, nil, nil)
	c.SetMode(Mode(42))

	c.HandleLifecycle(lifecycle(player.EventStart))
	if c.Mode() != ModeStop {
		t.Fatalf("invalid mode did not fall back to stop: %v", c.Mode())
	}
	if _, suppressed := r.snapshot(); !suppressed {
		t.Fatal("fallback stop mode did not suppress")
	}
}

func TestAECPumpForwardsFarEnd(t *testing.T) {
	p, r := newFakePlayer(), &fakeRecognizer{}
	c := NewCoordinator(p, r, nil, nil)
	c.EnableAEC(true)
	defer c.Close()

	if !p.farOn {
		t.Fatal("player far-end tap not enabled")
	}
	p.farEnd <- audio.NewChunk("s", make([]float32, 16), 16000)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		n := r.farFrames
		r.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("far-end chunk never reached recognizer")
}
