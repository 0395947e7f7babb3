package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChunkImmutability(t *testing.T) {
	src := []float32{0.1, 0.2, 0.3}
	c := NewChunk("s1", src, 16000)
	src[0] = 9

	if c.RawSamples()[0] != 0.1 {
		t.Fatal("chunk shares storage with caller slice")
	}
	out := c.Samples()
	out[1] = 9
	if c.RawSamples()[1] != 0.2 {
		t.Fatal("Samples returned the backing slice")
	}
	if c.Duration() != time.Duration(3)*time.Second/16000 {
		t.Fatalf("duration %v", c.Duration())
	}
}

func TestQueuePushPopOrder(t *testing.T) {
	q := NewChunkQueue(4)
	for i := 0; i < 3; i++ {
		if err := q.Push(context.Background(), NewChunk("s", []float32{float32(i)}, 16000)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		c, ok := q.TryPop()
		if !ok {
			t.Fatalf("pop %d failed", i)
		}
		if c.RawSamples()[0] != float32(i) {
			t.Fatalf("out of order at %d: %v", i, c.RawSamples()[0])
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("pop on empty queue succeeded")
	}
}

func TestQueueBackpressureOnProducer(t *testing.T) {
	q := NewChunkQueue(1)
	if err := q.Push(context.Background(), NewChunk("s", []float32{1}, 16000)); err != nil {
		t.Fatalf("push: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := q.Push(ctx, NewChunk("s", []float32{2}, 16000))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline on full queue, got %v", err)
	}

	// Consumer side frees space; a fresh push succeeds.
	if _, ok := q.TryPop(); !ok {
		t.Fatal("pop failed")
	}
	if err := q.Push(context.Background(), NewChunk("s", []float32{3}, 16000)); err != nil {
		t.Fatalf("push after drain: %v", err)
	}
	stats := q.Stats()
	if stats.Dropped != 1 || stats.Pushed != 2 {
		t.Fatalf("stats %+v", stats)
	}
}

func TestQueueDrainAndClose(t *testing.T) {
	q := NewChunkQueue(8)
	for i := 0; i < 5; i++ {
		q.TryPush(NewChunk("s", []float32{0}, 16000))
	}
	if n := q.Drain(); n != 5 {
		t.Fatalf("drain removed %d", n)
	}
	q.Close()
	if err := q.Push(context.Background(), NewChunk("s", []float32{0}, 16000)); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if q.TryPush(NewChunk("s", []float32{0}, 16000)) {
		t.Fatal("TryPush accepted after close")
	}
}

func TestPCMRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1, 2, -2}
	pcm := FloatToS16LE(in, nil)
	if len(pcm) != len(in)*2 {
		t.Fatalf("pcm length %d", len(pcm))
	}
	out := S16LEToFloat(pcm, nil)
	// Out-of-range inputs clip to full scale.
	want := []float32{0, 0.5, -0.5, 1, -1, 1, -1}
	for i := range want {
		diff := out[i] - want[i]
		if diff < -0.001 || diff > 0.001 {
			t.Fatalf("sample %d: got %v want %v", i, out[i], want[i])
		}
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Fatal("rms of empty frame")
	}
	frame := []float32{0.5, -0.5, 0.5, -0.5}
	if got := RMS(frame); got < 0.49 || got > 0.51 {
		t.Fatalf("rms %v", got)
	}
}
