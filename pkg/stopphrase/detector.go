// Package stopphrase matches rolling transcript text against a configurable
// stop-phrase set so playback can be interrupted by voice. Strong phrases
// trigger immediately; short ambiguous ones need confirmation because a bare
// "stop" shows up constantly in conversational speech.
package stopphrase

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/murmurkit/murmur/pkg/metrics"
	"github.com/murmurkit/murmur/pkg/redact"
)

// Class is the confidence class of a match.
type Class int

const (
	ClassStrong Class = iota
	ClassAmbiguousNeedsConfirmation
)

func (c Class) String() string {
	if c == ClassStrong {
		return "strong"
	}
	return "ambiguous"
}

// Match describes one detected stop phrase. Generated per window, consumed
// immediately, never persisted.
type Match struct {
	Phrase string
	Class  Class
	Time   time.Time
}

type Config struct {
	// Strong phrases trigger the stop handler immediately.
	Strong []string
	// Ambiguous phrases need ConfirmCount occurrences within ConfirmWindow.
	Ambiguous []string
	// ConfirmWindow is the debounce window for ambiguous phrases.
	ConfirmWindow time.Duration
	// ConfirmCount occurrences of an ambiguous phrase inside the window
	// confirm it. A single occurrence never triggers.
	ConfirmCount int
	// WindowSize bounds the rolling text window in words.
	WindowSize int
	Logger     *slog.Logger
	Observer   metrics.Observer
}

func (c *Config) applyDefaults() {
	if len(c.Strong) == 0 {
		c.Strong = []string{"ok stop", "okay stop"}
	}
	if len(c.Ambiguous) == 0 {
		c.Ambiguous = []string{"stop"}
	}
	if c.ConfirmWindow <= 0 {
		c.ConfirmWindow = 1500 * time.Millisecond
	}
	if c.ConfirmCount <= 0 {
		c.ConfirmCount = 2
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 12
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Observer == nil {
		c.Observer = metrics.NoopObserver{}
	}
}

// Detector holds a rolling window of normalized words plus the pending
// ambiguous-match state. Purely a function of recent text and time.
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	window  []string
	pending struct {
		phrase string
		count  int
		first  time.Time
	}
	onStop func(Match)
	now    func() time.Time

	logger *slog.Logger
	obs    metrics.Observer
}

func New(cfg Config, onStop func(Match)) *Detector {
	cfg.applyDefaults()
	return &Detector{
		cfg:    cfg,
		onStop: onStop,
		now:    time.Now,
		logger: cfg.Logger.With(slog.String("component", "stopphrase")),
		obs:    cfg.Observer,
	}
}

// Feed appends transcript text to the rolling window and evaluates the phrase
// set. On a Strong match or a confirmed Ambiguous match the stop handler runs
// and the window clears.
func (d *Detector) Feed(text string) {
	words := normalize(text)
	if len(words) == 0 {
		return
	}

	d.mu.Lock()
	d.window = append(d.window, words...)
	if n := len(d.window) - d.cfg.WindowSize; n > 0 {
		d.window = d.window[n:]
	}
	joined := strings.Join(d.window, " ")

	for _, phrase := range d.cfg.Strong {
		if containsPhrase(joined, phrase) {
			d.triggerLocked(Match{Phrase: phrase, Class: ClassStrong, Time: d.now()})
			d.mu.Unlock()
			return
		}
	}

	for _, phrase := range d.cfg.Ambiguous {
		hits := countPhrase(joined, phrase)
		if hits == 0 {
			continue
		}
		now := d.now()
		if d.pending.phrase != phrase || now.Sub(d.pending.first) > d.cfg.ConfirmWindow {
			d.pending.phrase = phrase
			d.pending.count = 0
			d.pending.first = now
		}
		d.pending.count += hits
		// Consume the window so the same words are not counted twice.
		d.window = d.window[:0]
		if d.pending.count >= d.cfg.ConfirmCount {
			d.triggerLocked(Match{Phrase: phrase, Class: ClassAmbiguousNeedsConfirmation, Time: now})
			d.mu.Unlock()
			return
		}
		d.logger.Debug("stop_phrase_pending",
			slog.String("phrase", phrase),
			slog.Int("count", d.pending.count))
		d.record(metrics.EventStopPhrasePended, phrase)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
}

// Reset clears the rolling window and pending state. Called per session.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.window = d.window[:0]
	d.pending.phrase = ""
	d.pending.count = 0
	d.mu.Unlock()
}

// triggerLocked fires the stop handler and clears all state. Caller holds d.mu.
func (d *Detector) triggerLocked(m Match) {
	d.window = d.window[:0]
	d.pending.phrase = ""
	d.pending.count = 0
	d.logger.Info("stop_phrase_match",
		slog.String("phrase", redact.Text(m.Phrase)),
		slog.String("class", m.Class.String()))
	d.record(metrics.EventStopPhraseMatch, m.Phrase)
	if d.onStop != nil {
		d.onStop(m)
	}
}

func (d *Detector) record(name, phrase string) {
	d.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{"phrase": phrase, "component": "stopphrase"},
	})
}

// normalize lowercases, strips punctuation and collapses whitespace, returning
// the remaining words.
func normalize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// containsPhrase reports whether the normalized window text contains phrase on
// word boundaries.
func containsPhrase(window, phrase string) bool {
	if window == phrase {
		return true
	}
	if strings.HasPrefix(window, phrase+" ") || strings.HasSuffix(window, " "+phrase) {
		return true
	}
	return strings.Contains(window, " "+phrase+" ")
}

// countPhrase counts non-overlapping word-boundary occurrences of phrase, so
// "stop stop" in one utterance contributes two hits to the debounce count.
func countPhrase(window, phrase string) int {
	words := strings.Fields(window)
	target := strings.Fields(phrase)
	if len(target) == 0 {
		return 0
	}
	n := 0
	for i := 0; i+len(target) <= len(words); {
		match := true
		for j, w := range target {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			n++
			i += len(target)
		} else {
			i++
		}
	}
	return n
}
