package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func event(name string) MetricsEvent {
	return MetricsEvent{Name: name, Time: time.Now(), Tags: map[string]string{"component": "test"}}
}

func TestMemoryObserver(t *testing.T) {
	m := NewMemoryObserver()
	m.RecordEvent(event("playback_start"))
	m.RecordEvent(event("playback_end"))
	if len(m.Events) != 2 {
		t.Fatalf("recorded %d events", len(m.Events))
	}
	if m.Events[0].Name != "playback_start" {
		t.Fatalf("wrong first event %q", m.Events[0].Name)
	}
}

func TestSamplingObserver(t *testing.T) {
	m := NewMemoryObserver()
	s := NewSamplingObserver(m, 0.5)
	for i := 0; i < 10; i++ {
		s.RecordEvent(event("segment_final"))
	}
	if len(m.Events) != 5 {
		t.Fatalf("sampled %d of 10 at rate 0.5", len(m.Events))
	}

	off := NewSamplingObserver(NewMemoryObserver(), 0)
	off.RecordEvent(event("segment_final"))
	if inner := off.inner.(*MemoryObserver); len(inner.Events) != 0 {
		t.Fatalf("rate 0 recorded %d events", len(inner.Events))
	}
}

func TestAsyncObserverDeliversAndDrops(t *testing.T) {
	m := NewMemoryObserver()
	a := NewAsyncObserver(m, 4)
	for i := 0; i < 4; i++ {
		a.RecordEvent(event("playback_underrun"))
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		n := len(m.Events)
		m.mu.Unlock()
		if n == 4 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	a.Close()
	if len(m.Events) != 4 {
		t.Fatalf("delivered %d of 4", len(m.Events))
	}
	// After close, events are silently ignored.
	a.RecordEvent(event("playback_underrun"))
}

func TestJSONLObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewJSONLObserver(&buf)
	o.RecordEvent(MetricsEvent{Name: "mode_change", Time: time.Now(), Fields: map[string]any{"mode": "wait"}})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid jsonl line: %v", err)
	}
	if decoded["name"] != "mode_change" {
		t.Fatalf("wrong name field %v", decoded["name"])
	}
}
