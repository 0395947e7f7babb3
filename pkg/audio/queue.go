package audio

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrQueueClosed = errors.New("chunk queue closed")

// QueueStats counts queue traffic.
type QueueStats struct {
	Pushed  int64
	Popped  int64
	Dropped int64
}

// ChunkQueue is a bounded transport between synthesis producers and the render
// callback. Push applies backpressure to producers; TryPop never blocks because
// it is called from the render thread.
type ChunkQueue struct {
	ch      chan Chunk
	closed  atomic.Bool
	pushed  int64
	popped  int64
	dropped int64
}

func NewChunkQueue(capacity int) *ChunkQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &ChunkQueue{ch: make(chan Chunk, capacity)}
}

// Push blocks until there is space, the context is cancelled, or the queue is
// closed. Backpressure lands on the producer side only.
func (q *ChunkQueue) Push(ctx context.Context, c Chunk) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case q.ch <- c:
		atomic.AddInt64(&q.pushed, 1)
		return nil
	case <-ctx.Done():
		atomic.AddInt64(&q.dropped, 1)
		return ctx.Err()
	}
}

// TryPush enqueues without blocking and reports whether the chunk was accepted.
func (q *ChunkQueue) TryPush(c Chunk) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.ch <- c:
		atomic.AddInt64(&q.pushed, 1)
		return true
	default:
		atomic.AddInt64(&q.dropped, 1)
		return false
	}
}

// TryPop dequeues without blocking. Safe for the render thread: a single
// channel receive, no locks held across it.
func (q *ChunkQueue) TryPop() (Chunk, bool) {
	select {
	case c := <-q.ch:
		atomic.AddInt64(&q.popped, 1)
		return c, true
	default:
		return Chunk{}, false
	}
}

// Drain discards all queued chunks and returns how many were removed.
func (q *ChunkQueue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			atomic.AddInt64(&q.popped, int64(n))
			return n
		}
	}
}

func (q *ChunkQueue) Len() int { return len(q.ch) }
func (q *ChunkQueue) Cap() int { return cap(q.ch) }

func (q *ChunkQueue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		// Channel stays open so in-flight TryPop calls drain safely; Drain
		// frees the remaining chunks.
		q.Drain()
	}
}

func (q *ChunkQueue) Stats() QueueStats {
	return QueueStats{
		Pushed:  atomic.LoadInt64(&q.pushed),
		Popped:  atomic.LoadInt64(&q.popped),
		Dropped: atomic.LoadInt64(&q.dropped),
	}
}
