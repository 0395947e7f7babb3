package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Well-known event names recorded by the playback and recognition layers.
const (
	EventPlaybackStart    = "playback_start"
	EventPlaybackEnd      = "playback_end"
	EventPlaybackPause    = "playback_pause"
	EventPlaybackResume   = "playback_resume"
	EventPlaybackCancel   = "playback_cancel"
	EventUnderrun         = "playback_underrun"
	EventChunkDropped     = "chunk_dropped"
	EventSegmentFinal     = "segment_final"
	EventSegmentError     = "segment_error"
	EventStopPhraseMatch  = "stop_phrase_match"
	EventStopPhrasePended = "stop_phrase_pending"
	EventBargeIn          = "barge_in"
	EventModeChange       = "mode_change"
	EventRateLimit        = "rate_limit"
)

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
