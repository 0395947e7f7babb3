package stopphrase

import (
	"sync"
	"testing"
	"time"
)

type stopRecorder struct {
	mu      sync.Mutex
	matches []Match
}

func (r *stopRecorder) handler(m Match) {
	r.mu.Lock()
	r.matches = append(r.matches, m)
	r.mu.Unlock()
}

func (r *stopRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

func (r *stopRecorder) last(t *testing.T) Match {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.matches) == 0 {
		t.Fatal("no matches recorded")
	}
	return r.matches[len(r.matches)-1]
}

func newTestDetector(t *testing.T) (*Detector, *stopRecorder, func(time.Duration)) {
	t.Helper()
	rec := &stopRecorder{}
	d := New(Config{}, rec.handler)
	now := time.Now()
	d.now = func() time.Time { return now }
	advance := func(dur time.Duration) { now = now.Add(dur) }
	return d, rec, advance
}

func TestStrongPhraseTriggersImmediately(t *testing.T) {
	d, rec, _ := newTestDetector(t)
	d.Feed("OK, stop!")
	if rec.count() != 1 {
		t.Fatalf("expected 1 match, got %d", rec.count())
	}
	m := rec.last(t)
	if m.Class != ClassStrong || m.Phrase != "ok stop" {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestStrongPhraseAcrossFeeds(t *testing.T) {
	d, rec, _ := newTestDetector(t)
	d.Feed("okay")
	if rec.count() != 0 {
		t.Fatal("premature match")
	}
	d.Feed("stop")
	if rec.count() != 1 {
		t.Fatalf("expected match across feeds, got %d", rec.count())
	}
	if rec.last(t).Phrase != "okay stop" {
		t.Fatalf("wrong phrase %q", rec.last(t).Phrase)
	}
}

func TestBareStopSingleOccurrenceNeverTriggers(t *testing.T) {
	d, rec, _ := newTestDetector(t)
	d.Feed("stop")
	if rec.count() != 0 {
		t.Fatal("single bare stop triggered")
	}
	d.Feed("talking about the weather")
	if rec.count() != 0 {
		t.Fatal("unrelated text triggered")
	}
}

func TestBareStopConfirmedByRepeat(t *testing.T) {
	d, rec, advance := newTestDetector(t)
	d.Feed("stop")
	advance(500 * time.Millisecond)
	d.Feed("stop")
	if rec.count() != 1 {
		t.Fatalf("repeat within window did not confirm, matches=%d", rec.count())
	}
	if rec.last(t).Class != ClassAmbiguousNeedsConfirmation {
		t.Fatalf("wrong class %v", rec.last(t).Class)
	}
}

func TestBareStopRepeatOutsideWindow(t *testing.T) {
	d, rec, advance := newTestDetector(t)
	d.Feed("stop")
	advance(2 * time.Second)
	d.Feed("stop")
	if rec.count() != 0 {
		t.Fatal("repeat outside debounce window triggered")
	}
	// A fresh pair inside the window still works.
	advance(100 * time.Millisecond)
	d.Feed("stop")
	if rec.count() != 1 {
		t.Fatalf("expected confirmation, got %d", rec.count())
	}
}

func TestDoubleStopInOneUtterance(t *testing.T) {
	d, rec, _ := newTestDetector(t)
	d.Feed("stop stop")
	if rec.count() != 1 {
		t.Fatalf("two occurrences in one utterance should confirm, got %d", rec.count())
	}
}

func TestStopInsideSentenceDoesNotAccumulateStrong(t *testing.T) {
	d, rec, _ := newTestDetector(t)
	d.Feed("the bus will stop near the station")
	if rec.count() != 0 {
		t.Fatal("embedded stop triggered")
	}
	// "station" does not contain the word "stop" on a boundary.
	d.Feed("next stopover is tomorrow")
	if rec.count() != 0 {
		t.Fatal("substring match triggered")
	}
}

func TestWindowClearsAfterTrigger(t *testing.T) {
	d, rec, _ := newTestDetector(t)
	d.Feed("ok stop")
	if rec.count() != 1 {
		t.Fatalf("expected 1 match, got %d", rec.count())
	}
	// The consumed window cannot re-trigger.
	d.Feed("thanks")
	if rec.count() != 1 {
		t.Fatalf("window not cleared, matches=%d", rec.count())
	}
}

func TestResetClearsPending(t *testing.T) {
	d, rec, advance := newTestDetector(t)
	d.Feed("stop")
	d.Reset()
	advance(100 * time.Millisecond)
	d.Feed("stop")
	if rec.count() != 0 {
		t.Fatal("pending state survived Reset")
	}
}

func TestCustomPhrases(t *testing.T) {
	rec := &stopRecorder{}
	d := New(Config{Strong: []string{"cancel that"}, Ambiguous: []string{"cancel"}}, rec.handler)
	d.Feed("please cancel that now")
	if rec.count() != 1 {
		t.Fatalf("custom strong phrase missed, got %d", rec.count())
	}
}

func TestNormalize(t *testing.T) {
	got := normalize("  OK,  Stop!!  ")
	if len(got) != 2 || got[0] != "ok" || got[1] != "stop" {
		t.Fatalf("normalize = %v", got)
	}
	if len(normalize("...")) != 0 {
		t.Fatal("punctuation-only text should normalize to nothing")
	}
}
