package mock

import (
	"context"
	"sync"

	"github.com/murmurkit/murmur/pkg/recognizer"
)

// Transcriber returns scripted texts in order, then empty strings. Segments
// arriving after the script runs out transcribe to nothing, which the
// recognizer drops.
type Transcriber struct {
	mu     sync.Mutex
	script []string
	next   int
	errs   map[int]error
}

func NewTranscriber(script ...string) *Transcriber {
	return &Transcriber{script: script, errs: make(map[int]error)}
}

// FailAt makes the n-th call (0-based) return err instead of text.
func (t *Transcriber) FailAt(n int, err error) {
	t.mu.Lock()
	t.errs[n] = err
	t.mu.Unlock()
}

func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, rate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.next
	t.next++
	if err := t.errs[i]; err != nil {
		return "", err
	}
	if i < len(t.script) {
		return t.script[i], nil
	}
	return "", nil
}

// Calls reports how many segments have been submitted.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

var _ recognizer.Transcriber = (*Transcriber)(nil)
